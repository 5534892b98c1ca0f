package website

import (
	"errors"
	"net/http"
	"net/url"
)

// apiResponse is the body of every JSON endpoint. The page scripts show
// Message to the visitor as-is.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func apiJson(status int, body apiResponse) ResponseData {
	res := ResponseData{StatusCode: status}
	res.Header().Set("Cache-Control", "no-store")
	res.WriteJson(body)
	return res
}

func apiSuccess(message string, data any) ResponseData {
	return apiJson(http.StatusOK, apiResponse{Success: true, Message: message, Data: data})
}

func apiFailure(status int, message string) ResponseData {
	return apiJson(status, apiResponse{Success: false, Message: message})
}

func badRequest(message string) ResponseData {
	return apiFailure(http.StatusBadRequest, message)
}

func methodNotAllowed(c *RequestContext) ResponseData {
	return apiFailure(http.StatusMethodNotAllowed, "Method not allowed")
}

/*
readBody fills dst from a JSON body, or from a form body via fromForm when the
request is not JSON. A non-nil ResponseData means the body was rejected.
*/
func readBody(c *RequestContext, dst any, fromForm func(values url.Values)) *ResponseData {
	if c.isJSON() || fromForm == nil {
		if err := c.ReadJson(dst); err != nil {
			res := badRequest(capitalize(err.Error()))
			if errors.Is(err, errBodyTooLarge) {
				res = apiFailure(http.StatusRequestEntityTooLarge, "Request body too large")
			}
			return &res
		}
		return nil
	}

	values, err := c.GetFormValues()
	if err != nil {
		res := badRequest("Could not read form")
		if errors.Is(err, errBodyTooLarge) {
			res = apiFailure(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return &res
	}
	fromForm(values)
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
