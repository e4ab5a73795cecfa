package schema

import "github.com/viant/mcp-protocol/schema"

const (
	MethodInitialize             = schema.MethodInitialize
	MethodPing                   = schema.MethodPing
	MethodResourcesList          = schema.MethodResourcesList
	MethodResourcesTemplatesList = schema.MethodResourcesTemplatesList
	MethodResourcesRead          = schema.MethodResourcesRead
	MethodPromptsList            = schema.MethodPromptsList
	MethodPromptsGet             = schema.MethodPromptsGet
	MethodToolsList              = schema.MethodToolsList
	MethodToolsCall              = schema.MethodToolsCall
	MethodComplete               = schema.MethodComplete
	MethodSubscribe              = schema.MethodSubscribe
	MethodUnsubscribe            = schema.MethodUnsubscribe
	MethodLoggingSetLevel        = schema.MethodLoggingSetLevel

	MethodNotificationInitialized = "notifications/initialized"
	MethodNotificationMessage     = "notifications/message"
	MethodNotificationProgress    = "notifications/progress"
	MethodNotificationCancel      = "notifications/cancelled"

	MethodNotificationToolsListChanged     = "notifications/tools/list_changed"
	MethodNotificationResourcesListChanged = "notifications/resources/list_changed"
	MethodNotificationPromptsListChanged   = "notifications/prompts/list_changed"
	MethodNotificationResourceUpdated      = "notifications/resources/updated"
)

// SessionHeader carries the remote session identifier on every HTTP exchange.
const SessionHeader = "Mcp-Session-Id"

// Forwarded reports whether a remote notification is relayed verbatim to the local client.
func Forwarded(method string) bool {
	switch method {
	case MethodNotificationToolsListChanged,
		MethodNotificationResourcesListChanged,
		MethodNotificationPromptsListChanged,
		MethodNotificationResourceUpdated,
		MethodNotificationMessage,
		MethodNotificationProgress:
		return true
	}
	return false
}
