package utils

import (
	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
		Data:    nil,
	})
}

// RespondErrorCode mengembalikan error dengan kode mesin agar client bisa
// branching (mis. "table_locked" vs "bad_pin" vs "stale_cart").
func RespondErrorCode(c *gin.Context, code int, errCode string, extra gin.H) {
	body := gin.H{"error": errCode}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(code, body)
}
