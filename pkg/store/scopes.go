package store

import (
	"time"

	"gorm.io/gorm"
)

func Eq(column string, value interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" = ?", value)
	}
}

func In(column string, values interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" IN ?", values)
	}
}

func Before(column string, t time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" < ?", t)
	}
}

// Between matches from <= column <= to.
func Between(column string, from, to time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" >= ? AND "+column+" <= ?", from, to)
	}
}

func IsNull(column string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column + " IS NULL")
	}
}

// Search matches term case-insensitively against any of columns.
func Search(term string, columns ...string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if term == "" || len(columns) == 0 {
			return db
		}
		like := "%" + term + "%"
		cond := db.Session(&gorm.Session{NewDB: true})
		for i, col := range columns {
			if i == 0 {
				cond = cond.Where("LOWER("+col+") LIKE LOWER(?)", like)
			} else {
				cond = cond.Or("LOWER("+col+") LIKE LOWER(?)", like)
			}
		}
		return db.Where(cond)
	}
}

func OrderBy(order string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(order)
	}
}

func Limit(n int) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(n)
	}
}

// Page selects a 1-based page of the given size.
func Page(page, size int) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		if size < 1 || size > 100 {
			size = 10
		}
		return db.Offset((page - 1) * size).Limit(size)
	}
}
