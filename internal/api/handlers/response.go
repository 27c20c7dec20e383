// Package handlers implements the HTTP handlers of the portal: the
// node-facing API, the application-facing API and the admin API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// respond writes the success envelope: {"<action>": {"ok": true, "data": ...}}.
// The data key is omitted when there is nothing to return.
func respond(c *gin.Context, action string, data interface{}) {
	respondStatus(c, http.StatusOK, action, data)
}

func respondStatus(c *gin.Context, status int, action string, data interface{}) {
	body := gin.H{"ok": true}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, gin.H{action: body})
}

// respondError writes the error envelope: {"<action>": {"ok": false, "error": "..."}}.
func respondError(c *gin.Context, status int, action string, message string) {
	c.JSON(status, gin.H{action: gin.H{"ok": false, "error": message}})
}
