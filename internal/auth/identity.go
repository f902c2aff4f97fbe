package auth

import "github.com/gin-gonic/gin"

const identityKey = "identity"

// Identity is the authenticated caller. The zero value is anonymous.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

func SetIdentity(c *gin.Context, id Identity) {
	c.Set(identityKey, id)
	c.Set("user_id", id.UserID)
}

func IdentityFrom(c *gin.Context) Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{}
}
