package main

import (
	"net/http"
	"strconv"
	"strings"

	"library_catalog/pkg/circulation"
	"library_catalog/pkg/models"

	"github.com/gin-gonic/gin"
)

type bookRequest struct {
	Title       string   `json:"title" binding:"required"`
	Author      string   `json:"author" binding:"required"`
	ISBN        string   `json:"isbn" binding:"required"`
	Quantity    *int     `json:"quantity" binding:"required,gte=0"`
	Description string   `json:"description"`
	Year        int      `json:"year"`
	Genre       string   `json:"genre"`
	Publisher   string   `json:"publisher"`
	PageCount   int      `json:"pageCount"`
	CoverURL    string   `json:"coverUrl"`
	Subjects    []string `json:"subjects"`
}

type bookPatchRequest struct {
	Title       *string  `json:"title"`
	Author      *string  `json:"author"`
	ISBN        *string  `json:"isbn"`
	Quantity    *int     `json:"quantity"`
	Description *string  `json:"description"`
	Year        *int     `json:"year"`
	Genre       *string  `json:"genre"`
	Publisher   *string  `json:"publisher"`
	PageCount   *int     `json:"pageCount"`
	CoverURL    *string  `json:"coverUrl"`
	Subjects    []string `json:"subjects"`
}

func getBooks(c *gin.Context) {
	page, size := pageParams(c)
	books, total, err := svc.ListBooks(c.Request.Context(), circulation.BookQuery{
		Search: c.Query("search"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paged(page, size, total, books))
}

func getBook(c *gin.Context) {
	book, err := svc.GetBook(c.Request.Context(), c.Param("bookUid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func createBook(c *gin.Context) {
	var request bookRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	book, err := svc.CreateBook(c.Request.Context(), models.Book{
		Title:       request.Title,
		Author:      request.Author,
		ISBN:        request.ISBN,
		Quantity:    *request.Quantity,
		Description: request.Description,
		Year:        request.Year,
		Genre:       request.Genre,
		Publisher:   request.Publisher,
		PageCount:   request.PageCount,
		CoverURL:    request.CoverURL,
		Subjects:    strings.Join(request.Subjects, ","),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Location", "/api/v1/books/"+book.BookUid)
	c.JSON(http.StatusCreated, book)
}

func updateBook(c *gin.Context) {
	var request bookPatchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	book, err := svc.UpdateBook(c.Request.Context(), c.Param("bookUid"), circulation.BookPatch{
		Title:       request.Title,
		Author:      request.Author,
		ISBN:        request.ISBN,
		Quantity:    request.Quantity,
		Description: request.Description,
		Year:        request.Year,
		Genre:       request.Genre,
		Publisher:   request.Publisher,
		PageCount:   request.PageCount,
		CoverURL:    request.CoverURL,
		Subjects:    request.Subjects,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func deleteBook(c *gin.Context) {
	if err := svc.DeleteBook(c.Request.Context(), c.Param("bookUid")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// lookupBook previews Open Library metadata for an ISBN before the book is added.
func lookupBook(c *gin.Context) {
	isbn := circulation.NormalizeISBN(c.Param("isbn"))
	if !circulation.ValidISBN(isbn) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ISBN", "kind": "validation_error"})
		return
	}
	md, err := lookup.LookupByISBN(c.Request.Context(), isbn)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "catalog lookup failed", "details": err.Error()})
		return
	}
	if md == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no catalog record for ISBN " + isbn, "kind": "not_found"})
		return
	}
	c.JSON(http.StatusOK, md)
}

func searchCatalog(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required", "kind": "validation_error"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		limit = 10
	}
	results, err := lookup.Search(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "catalog search failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": results})
}
