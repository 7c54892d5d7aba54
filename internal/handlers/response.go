package handlers

import (
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
)

const mimePDF = "application/pdf"

// sendPDF writes data as an attachment download.
func sendPDF(c echo.Context, filename string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	return c.Blob(http.StatusOK, mimePDF, data)
}
