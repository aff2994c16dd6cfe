package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// HX-Trigger event names the page listens for.
const (
	eventReadingsChanged = "readings:changed"
	eventFormReset       = "form:reset"
	eventNotification    = "show-notification"
)

// HTMXResponseBuilder assembles a response together with its HX-Trigger
// events.
type HTMXResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	body       []byte
	headers    map[string]string
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

func (b *HTMXResponseBuilder) trigger(name string, data interface{}) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerReadingsChanged fires readings:changed; the history and chart
// partials reload on it.
func (b *HTMXResponseBuilder) TriggerReadingsChanged(op string, months []string) *HTMXResponseBuilder {
	if months == nil {
		months = []string{}
	}
	return b.trigger(eventReadingsChanged, map[string]interface{}{"op": op, "months": months})
}

// TriggerFormReset clears the reading inputs after a save.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.trigger(eventFormReset, struct{}{})
}

// NotificationType selects the style of a toast.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
)

var notificationDuration = map[NotificationType]int{
	NotificationSuccess: 3000,
	NotificationWarning: 5000,
	NotificationError:   5000,
}

// Notify shows a toast on the page.
func (b *HTMXResponseBuilder) Notify(kind NotificationType, message string) *HTMXResponseBuilder {
	return b.trigger(eventNotification, map[string]interface{}{
		"type":     string(kind),
		"message":  message,
		"duration": notificationDuration[kind],
	})
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *HTMXResponseBuilder) Body(content []byte) *HTMXResponseBuilder {
	b.body = content
	return b
}

func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// BodyJSON encodes v as the body. An unencodable value turns the response
// into a 500.
func (b *HTMXResponseBuilder) BodyJSON(v interface{}) *HTMXResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		b.statusCode = http.StatusInternalServerError
		data = []byte(`{"error":"encoding failed"}`)
	}
	b.body = data
	b.headers["Content-Type"] = "application/json"
	return b
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.triggers) > 0 {
		if data, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(data))
		}
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse renders message, escaped, as an error fragment.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}

// SuccessResponse renders message as a success fragment.
func SuccessResponse(message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		BodyHTML(`<div class="success">` + template.HTMLEscapeString(message) + `</div>`)
}

// ConfirmResponse answers 409 with message and a button that resubmits the
// reading form with confirm set.
func ConfirmResponse(message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusConflict).
		BodyHTML(`<div class="warning" role="alert"><p>` + template.HTMLEscapeString(message) + `</p>` +
			`<button type="button" class="btn" hx-post="/readings" hx-include="#reading-form" ` +
			`hx-vals='{"confirm":"1"}' hx-target="#form-feedback">Salva comunque</button></div>`)
}

// errorFor writes message as JSON for API clients and as a fragment for the
// page.
func errorFor(jsonMode bool, status int, message string) *HTMXResponseBuilder {
	if jsonMode {
		return NewHTMXResponse().Status(status).BodyJSON(map[string]string{"error": message})
	}
	return ErrorResponse(status, message)
}
