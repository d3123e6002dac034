// Package errs defines the HoneybeePF error taxonomy (spec §7) as typed
// errors, each carrying a Class() used by the supervisor to select a
// process exit code.
package errs

import "fmt"

// Class names the error taxonomy bucket, matching the wire vocabulary
// logged alongside every non-fatal error (spec §7).
type Class string

const (
	ClassConfig    Class = "config"
	ClassPrivilege Class = "privilege"
	ClassLoad      Class = "load"
	ClassAttach    Class = "attach"
	ClassRing      Class = "ring"
	ClassHandler   Class = "handler"
	ClassExport    Class = "export"
)

// taxonomyError is the common shape behind every typed error below.
type taxonomyError struct {
	class Class
	msg   string
	cause error
}

func (e *taxonomyError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.class, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.class, e.msg)
}

func (e *taxonomyError) Unwrap() error { return e.cause }

// Class returns the taxonomy bucket this error belongs to.
func (e *taxonomyError) Class() Class { return e.class }

func newErr(class Class, msg string, cause error) *taxonomyError {
	return &taxonomyError{class: class, msg: msg, cause: cause}
}

// ConfigError wraps a configuration-load or validation failure (exit code 1).
func ConfigError(msg string, cause error) error { return newErr(ClassConfig, msg, cause) }

// PrivilegeError wraps insufficient capability/privilege to load BPF programs
// (exit code 3).
func PrivilegeError(msg string, cause error) error { return newErr(ClassPrivilege, msg, cause) }

// LoadError wraps a fatal BPF object-load failure (exit code 2).
func LoadError(msg string, cause error) error { return newErr(ClassLoad, msg, cause) }

// AttachError wraps a per-probe attach failure; the supervisor treats this
// as non-fatal, disabling only the offending probe (spec §4.2).
func AttachError(msg string, cause error) error { return newErr(ClassAttach, msg, cause) }

// RingError wraps a ring-transport fault (record-size mismatch, overflow).
func RingError(msg string, cause error) error { return newErr(ClassRing, msg, cause) }

// HandlerError wraps a probe handler failure; logged, drain continues.
func HandlerError(msg string, cause error) error { return newErr(ClassHandler, msg, cause) }

// ExportError wraps a sink submission failure after retries are exhausted.
func ExportError(msg string, cause error) error { return newErr(ClassExport, msg, cause) }

// ClassOf extracts the Class of err if it is (or wraps) a taxonomy error.
func ClassOf(err error) (Class, bool) {
	var te *taxonomyError
	if ok := asTaxonomy(err, &te); ok {
		return te.class, true
	}
	return "", false
}

func asTaxonomy(err error, target **taxonomyError) bool {
	for err != nil {
		if te, ok := err.(*taxonomyError); ok {
			*target = te
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ExitCode maps an error's taxonomy class to the process exit code the
// supervisor reports on fatal shutdown (spec §6).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	class, ok := ClassOf(err)
	if !ok {
		return 4
	}
	switch class {
	case ClassConfig:
		return 1
	case ClassLoad:
		return 2
	case ClassPrivilege:
		return 3
	default:
		return 4
	}
}
