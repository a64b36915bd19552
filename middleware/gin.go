package middleware

import (
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/gin-gonic/gin"
)

// GinVerifyFunc checks the credentials carried by c.
type GinVerifyFunc func(c *gin.Context) (bool, error)

// GinDecisionKey is the gin context key holding the [goGuard.Decision].
const GinDecisionKey = "goguard.decision"

// GinLogin is [Login] for gin. Rejections abort the chain; on success the
// decision is stored under [GinDecisionKey] and c.Next runs.
//
// Identity uses [ClientIP] with the configured trusted proxies, not gin's own
// ClientIP, so both adapters agree.
func GinLogin(guard *goGuard.Guard, verify GinVerifyFunc, opts ...Option) gin.HandlerFunc {
	o := newOptions(opts)
	return func(c *gin.Context) {
		var requestVerify VerifyRequestFunc
		if verify != nil {
			requestVerify = func(r *http.Request) (bool, error) {
				c.Request = r
				return verify(c)
			}
		}

		r, ok := o.protect(guard, requestVerify, c.Writer, c.Request)
		if !ok {
			c.Abort()
			return
		}

		c.Request = r
		if d, ok := DecisionFromContext(r.Context()); ok {
			c.Set(GinDecisionKey, d)
		}
		c.Next()
	}
}
