package changefeed

import "errors"

var (
	// ErrSubscriptionFailed indicates the push channel could not be established.
	ErrSubscriptionFailed = errors.New("change feed subscription failed")
	// ErrOwnerRequired indicates a subscription was requested without an owner.
	ErrOwnerRequired = errors.New("change feed owner id is required")
	// ErrAlreadySubscribed indicates Start was called on an active listener.
	ErrAlreadySubscribed = errors.New("change feed already subscribed")
)
