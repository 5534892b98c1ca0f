package website

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/subscriptions"
	"github.com/luminagoods/site/src/templates"
)

type subscribeBody struct {
	Email                 string   `json:"email"`
	Name                  string   `json:"name"`
	Message               string   `json:"message"`
	Portfolio             string   `json:"portfolio"`
	PreferredContactTimes []string `json:"preferred_contact_times"`
}

type subscribeData struct {
	Email             string          `json:"email"`
	Category          models.Category `json:"category"`
	EmailSent         bool            `json:"email_sent"`
	AlreadySubscribed bool            `json:"already_subscribed,omitempty"`
}

func (h *handlers) Subscribe(c *RequestContext) ResponseData {
	var body subscribeBody
	if res := readBody(c, &body, func(v url.Values) {
		body.Email = v.Get("email")
		body.Name = v.Get("name")
		body.Message = v.Get("message")
		body.Portfolio = v.Get("portfolio")
		body.PreferredContactTimes = v["preferred_contact_times"]
	}); res != nil {
		return *res
	}

	result, err := h.Subscriptions.Subscribe(c, subscriptions.Request{
		Email:                 body.Email,
		Category:              c.PathParams["category"],
		Name:                  body.Name,
		Message:               body.Message,
		Portfolio:             body.Portfolio,
		PreferredContactTimes: body.PreferredContactTimes,
	})
	if err != nil {
		return c.ErrorResponse(err)
	}

	if !result.Success {
		// Already on the list. Not an error for the visitor.
		return apiJson(http.StatusOK, apiResponse{
			Success: false,
			Message: result.Message,
			Data:    subscribeData{AlreadySubscribed: result.AlreadySubscribed, Category: models.Category(c.PathParams["category"])},
		})
	}

	data := subscribeData{EmailSent: result.EmailSent}
	if result.Subscriber != nil {
		data.Email = result.Subscriber.Email
		data.Category = result.Subscriber.Category
	}
	return apiSuccess(result.Message, data)
}

type unsubscribeBody struct {
	Token string `json:"token"`
}

type unsubscribeData struct {
	Email    string          `json:"email"`
	Category models.Category `json:"category"`
}

func (h *handlers) UnsubscribeApi(c *RequestContext) ResponseData {
	var body unsubscribeBody
	if res := readBody(c, &body, nil); res != nil {
		return *res
	}

	result, err := h.Subscriptions.Unsubscribe(c, body.Token)
	if err != nil {
		return c.ErrorResponse(err)
	}
	if !result.Success {
		return apiFailure(http.StatusBadRequest, result.Message)
	}
	return apiSuccess(result.Message, unsubscribeData{Email: result.Email, Category: result.Category})
}

// UnsubscribePage is the target of the link in every email, so it always
// answers with a page, never JSON.
func (h *handlers) UnsubscribePage(c *RequestContext) ResponseData {
	page := templates.UnsubscribePage{Brand: email.Brand()}

	result, err := h.Subscriptions.Unsubscribe(c, c.Req.URL.Query().Get("token"))
	var res ResponseData
	if errors.Is(err, subscriptions.ErrStoreNotConfigured) {
		res.StatusCode = http.StatusServiceUnavailable
		page.Message = "Unsubscribing is unavailable right now. Please try again later."
	} else if err != nil {
		res.StatusCode = http.StatusInternalServerError
		res.Errors = append(res.Errors, err)
		page.Message = msgInternal
	} else if !result.Success {
		res.StatusCode = http.StatusBadRequest
		page.Message = result.Message
	} else {
		page.Success = true
		page.Email = result.Email
		page.ListName = result.Category.DisplayName()
		page.Message = result.Message
	}

	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	res.Header().Set("Cache-Control", "no-store")
	res.MustWriteTemplate("unsubscribe.html", page)
	return res
}
