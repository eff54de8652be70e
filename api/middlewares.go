package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safwentrabelsi/voce/wallet"
)

// ValidateAddressParam rejects requests whose path parameter is not an account
// address and replaces it with its normalized form.
func ValidateAddressParam(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		normalized, err := wallet.NormalizeAddress(c.Param(param))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Address must be a hex account address"})
			c.Abort()
			return
		}
		for i := range c.Params {
			if c.Params[i].Key == param {
				c.Params[i].Value = normalized
			}
		}
		c.Next()
	}
}

// ValidateIDParam rejects requests whose path parameter is not an unsigned integer.
func ValidateIDParam(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := parseUint(c.Param(param)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Id must be a valid number"})
			c.Abort()
			return
		}
		c.Next()
	}
}
