// Package apperrors provides the application's error type. It extends the
// standard error interface with error chaining, HTTP status codes, and
// message derivation, so packages can declare sentinel errors and refine
// them per call site.
package apperrors

// Error is the interface all application errors implement. Methods that
// produce errors return Error to support chaining. Sentinel errors are
// declared with New and refined with the derivation methods.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // fresh error using current as template
	Msg(msg string) Error                  // new message, wraps the original
	MsgErr(msg string, err ...error) Error // new message, wraps original plus extra errors
	Err(err ...error) Error                // attaches additional errors, keeps the message
	SetStatusCode(int) Error               // sets the HTTP status code
	StatusCode() int                       // returns the HTTP status code
	ErrorAll() string                      // message including all wrapped errors
	UnwrapAll() []error                    // all wrapped errors
}
