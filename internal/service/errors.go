package service

import (
	"fmt"

	"github.com/emrgen/template/internal/validator"
)

// LifecycleError reports a violated lifecycle precondition. Errors with the
// same Code match each other under errors.Is.
type LifecycleError struct {
	Code    string
	Message string
}

func (e *LifecycleError) Error() string {
	return e.Message
}

func (e *LifecycleError) Is(target error) bool {
	t, ok := target.(*LifecycleError)
	return ok && t.Code == e.Code
}

var (
	// ErrTemplateNotFound is returned when the owning template does not exist.
	ErrTemplateNotFound = &LifecycleError{Code: "TEMPLATE_NOT_FOUND", Message: "template not found"}
	// ErrRevisionNotFound is returned when a revision does not exist.
	ErrRevisionNotFound = &LifecycleError{Code: "REVISION_NOT_FOUND", Message: "revision not found"}
	// ErrNameTaken is returned when the template already has a revision with the name.
	ErrNameTaken = &LifecycleError{Code: "NAME_TAKEN", Message: "revision name already used in this template"}
	// ErrInvalidTransition is returned when the current status does not allow the operation.
	ErrInvalidTransition = &LifecycleError{Code: "INVALID_TRANSITION", Message: "status transition not allowed"}
	// ErrScheduleConflict is returned when another revision is scheduled at the same instant.
	ErrScheduleConflict = &LifecycleError{Code: "SCHEDULE_CONFLICT", Message: "another revision is scheduled at the same instant"}
	// ErrScheduleInPast is returned when a schedule instant is not in the future.
	ErrScheduleInPast = &LifecycleError{Code: "SCHEDULE_IN_PAST", Message: "schedule instant must be in the future"}
	// ErrNoSuccessor is returned when archiving would leave the template without a published revision.
	ErrNoSuccessor = &LifecycleError{Code: "NO_SUCCESSOR", Message: "no revision is scheduled to replace the published one"}
	// ErrNotEditable is returned when a revision can no longer be changed.
	ErrNotEditable = &LifecycleError{Code: "NOT_EDITABLE", Message: "revision is not editable"}
	// ErrNotDeletable is returned when deleting would remove published history.
	ErrNotDeletable = &LifecycleError{Code: "NOT_DELETABLE", Message: "only draft or scheduled revisions can be deleted"}
	// ErrNothingScheduled is returned when there is no pending transition to cancel or run.
	ErrNothingScheduled = &LifecycleError{Code: "NOTHING_SCHEDULED", Message: "revision has no pending schedule"}
	// ErrStatusConflict is returned when the revision changed concurrently.
	ErrStatusConflict = &LifecycleError{Code: "STATUS_CONFLICT", Message: "revision was changed concurrently"}
	// ErrInvalidRequest is returned when a request fails field validation.
	ErrInvalidRequest = &LifecycleError{Code: "INVALID_REQUEST", Message: "invalid request"}
)

func lifecycleErr(base *LifecycleError, format string, args ...any) *LifecycleError {
	return &LifecycleError{Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

// ContentInvalidError carries the validator result that blocked an operation.
type ContentInvalidError struct {
	Result *validator.Result
}

func (e *ContentInvalidError) Error() string {
	if len(e.Result.Errors) == 0 {
		return "content is invalid"
	}

	first := e.Result.Errors[0]
	return fmt.Sprintf("content is invalid: %d error(s), first %s at %q: %s",
		len(e.Result.Errors), first.Code, first.Path, first.Message)
}
