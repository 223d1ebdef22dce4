package stack

import "fmt"

// ConsistencyError reports a contradiction detected before any
// destructive action: conflicting values for one option, or components
// composed across different targets.
type ConsistencyError struct {
	// Subject names the component or composition the contradiction was
	// found in.
	Subject string

	// Detail describes the contradiction.
	Detail string
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Detail)
}

// optionConflictError builds the ConsistencyError for two different
// values supplied for the same option.
func optionConflictError(subject, option string, have, want string) *ConsistencyError {
	return &ConsistencyError{
		Subject: subject,
		Detail: fmt.Sprintf("conflicting values for option %q: %q and %q",
			option, have, want),
	}
}

// configureAfterInstallError builds the ConsistencyError for a
// configure call issued after the component was installed.
func configureAfterInstallError(subject string) *ConsistencyError {
	return &ConsistencyError{
		Subject: subject,
		Detail:  "must be configured before installing",
	}
}
