package apperrors

import "net/http"

// Code is a stable, machine-readable error code. Clients switch on the code,
// never on the message text.
type Code string

const (
	CodeSuccess              Code = "SYS_000"
	CodeInternal             Code = "SYS_001"
	CodeValidation           Code = "SYS_002"
	CodeMethodNotAllowed     Code = "SYS_003"
	CodeTooManyRequests      Code = "SYS_429"
	CodeInvalidCredentials   Code = "AUTH_001"
	CodeEmailAlreadyExists   Code = "AUTH_002"
	CodeEmailNotVerified     Code = "AUTH_003"
	CodeVerifyTokenInvalid   Code = "AUTH_004"
	CodeVerifyTokenExpired   Code = "AUTH_005"
	CodeVerifyTokenUsed      Code = "AUTH_006"
	CodeCurrentPassword      Code = "AUTH_010"
	CodeEmailSameAsOld       Code = "AUTH_011"
	CodePasswordSameAsOld    Code = "AUTH_012"
	CodeUnauthorized         Code = "AUTH_401"
	CodeForbidden            Code = "AUTH_403"
	CodeUserNotFound         Code = "AUTH_404"
	CodeRoleNotFound         Code = "AUTH_405"
	CodePermissionNotFound   Code = "AUTH_406"
	CodeRoleExists           Code = "AUTH_407"
	CodePermissionExists     Code = "AUTH_408"
	CodeTaskNotFound         Code = "TASK_404"
	CodeTaskAccessDenied     Code = "TASK_403"
	CodeSubtaskNotFound      Code = "SUBTASK_404"
	CodeSubtaskAccessDenied  Code = "SUBTASK_403"
	CodeCommentNotFound      Code = "CMT_404"
	CodeCommentAccessDenied  Code = "CMT_403"
	CodeNotificationNotFound Code = "NTF_404"
	CodeNotificationDenied   Code = "NTF_403"
	CodeTaskLogNotFound      Code = "LOG_404"
)

type codeInfo struct {
	message string
	status  int
}

var registry = map[Code]codeInfo{
	CodeSuccess:              {"Success", http.StatusOK},
	CodeInternal:             {"Internal server error", http.StatusInternalServerError},
	CodeValidation:           {"Validation failed", http.StatusBadRequest},
	CodeMethodNotAllowed:     {"HTTP method not allowed", http.StatusMethodNotAllowed},
	CodeTooManyRequests:      {"Too many requests", http.StatusTooManyRequests},
	CodeInvalidCredentials:   {"Invalid credentials", http.StatusUnauthorized},
	CodeEmailAlreadyExists:   {"Email already exists", http.StatusConflict},
	CodeEmailNotVerified:     {"Email not verified", http.StatusForbidden},
	CodeVerifyTokenInvalid:   {"Invalid verification token", http.StatusBadRequest},
	CodeVerifyTokenExpired:   {"Verification token expired", http.StatusBadRequest},
	CodeVerifyTokenUsed:      {"Verification token already used", http.StatusBadRequest},
	CodeCurrentPassword:      {"Current password is incorrect", http.StatusBadRequest},
	CodeEmailSameAsOld:       {"New email must be different from current email", http.StatusBadRequest},
	CodePasswordSameAsOld:    {"New password must be different from current password", http.StatusBadRequest},
	CodeUnauthorized:         {"Unauthorized", http.StatusUnauthorized},
	CodeForbidden:            {"Forbidden", http.StatusForbidden},
	CodeUserNotFound:         {"User not found", http.StatusNotFound},
	CodeRoleNotFound:         {"Role not found", http.StatusNotFound},
	CodePermissionNotFound:   {"Permission not found", http.StatusNotFound},
	CodeRoleExists:           {"Role already exists", http.StatusConflict},
	CodePermissionExists:     {"Permission already exists", http.StatusConflict},
	CodeTaskNotFound:         {"Task not found", http.StatusNotFound},
	CodeTaskAccessDenied:     {"You do not have permission to access this task", http.StatusForbidden},
	CodeSubtaskNotFound:      {"Subtask not found", http.StatusNotFound},
	CodeSubtaskAccessDenied:  {"You do not have permission to access this subtask", http.StatusForbidden},
	CodeCommentNotFound:      {"Comment not found", http.StatusNotFound},
	CodeCommentAccessDenied:  {"You do not have permission to modify this comment", http.StatusForbidden},
	CodeNotificationNotFound: {"Notification not found", http.StatusNotFound},
	CodeNotificationDenied:   {"You do not have permission to access this notification", http.StatusForbidden},
	CodeTaskLogNotFound:      {"Task log not found", http.StatusNotFound},
}

// DefaultMessage returns the human message registered for the code.
func (c Code) DefaultMessage() string {
	if info, ok := registry[c]; ok {
		return info.message
	}
	return registry[CodeInternal].message
}

// HTTPStatus returns the HTTP status class of the code. Unknown codes map to 500.
func (c Code) HTTPStatus() int {
	if info, ok := registry[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Known reports whether the code is part of the registry.
func (c Code) Known() bool {
	_, ok := registry[c]
	return ok
}
