package models

import (
	"database/sql/driver"
	"fmt"
)

// CallResult is the outcome of one verification call attempt
type CallResult string

const (
	CallResultAnswered          CallResult = "answered"
	CallResultConfirmed         CallResult = "confirmed"
	CallResultNoAnswer          CallResult = "no_answer"
	CallResultBusy              CallResult = "busy"
	CallResultWrongNumber       CallResult = "wrong_number"
	CallResultInvalidNumber     CallResult = "invalid_number"
	CallResultRejected          CallResult = "rejected"
	CallResultNotInterested     CallResult = "not_interested"
	CallResultCallbackRequested CallResult = "callback_requested"
)

// AllCallResults lists every result in declaration order
func AllCallResults() []CallResult {
	return []CallResult{
		CallResultAnswered,
		CallResultConfirmed,
		CallResultNoAnswer,
		CallResultBusy,
		CallResultWrongNumber,
		CallResultInvalidNumber,
		CallResultRejected,
		CallResultNotInterested,
		CallResultCallbackRequested,
	}
}

// FollowUpCallResults lists the results that make a voter eligible for a retry
func FollowUpCallResults() []CallResult {
	var out []CallResult
	for _, r := range AllCallResults() {
		if r.RequiresFollowUp() {
			out = append(out, r)
		}
	}
	return out
}

// String returns the string representation of the result
func (r CallResult) String() string {
	return string(r)
}

// Valid checks if the result is one of the known values
func (r CallResult) Valid() bool {
	switch r {
	case CallResultAnswered, CallResultConfirmed, CallResultNoAnswer,
		CallResultBusy, CallResultWrongNumber, CallResultInvalidNumber,
		CallResultRejected, CallResultNotInterested, CallResultCallbackRequested:
		return true
	default:
		return false
	}
}

// IsSuccessfulContact reports whether a person was actually reached
func (r CallResult) IsSuccessfulContact() bool {
	switch r {
	case CallResultAnswered, CallResultConfirmed, CallResultCallbackRequested:
		return true
	default:
		return false
	}
}

// RequiresFollowUp reports whether the voter should be called again later
func (r CallResult) RequiresFollowUp() bool {
	switch r {
	case CallResultNoAnswer, CallResultBusy, CallResultCallbackRequested:
		return true
	default:
		return false
	}
}

// IsInvalidNumber reports whether the phone number itself is unusable
func (r CallResult) IsInvalidNumber() bool {
	switch r {
	case CallResultWrongNumber, CallResultInvalidNumber:
		return true
	default:
		return false
	}
}

// ClosesAssignment reports whether a call with this result completes the owning assignment
func (r CallResult) ClosesAssignment() bool {
	return r.IsSuccessfulContact() || r.IsInvalidNumber()
}

// DisplayName returns a human-readable result name
func (r CallResult) DisplayName() string {
	switch r {
	case CallResultAnswered:
		return "Answered"
	case CallResultConfirmed:
		return "Confirmed"
	case CallResultNoAnswer:
		return "No Answer"
	case CallResultBusy:
		return "Busy"
	case CallResultWrongNumber:
		return "Wrong Number"
	case CallResultInvalidNumber:
		return "Invalid Number"
	case CallResultRejected:
		return "Rejected"
	case CallResultNotInterested:
		return "Not Interested"
	case CallResultCallbackRequested:
		return "Callback Requested"
	default:
		return "Unknown"
	}
}

// Scan implements the sql.Scanner interface for CallResult
func (r *CallResult) Scan(value any) error {
	if value == nil {
		*r = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*r = CallResult(v)
	case []byte:
		*r = CallResult(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CallResult", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CallResult
func (r CallResult) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid CallResult: %s", r)
	}
	return string(r), nil
}
