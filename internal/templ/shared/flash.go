// Package shared holds view types used by more than one page.
package shared

// FlashType selects the styling of a flash message.
type FlashType string

const (
	FlashSuccess FlashType = "success"
	FlashError   FlashType = "error"
	FlashInfo    FlashType = "info"
)

// Flash is a one-off message shown above a form or page.
type Flash struct {
	Type    FlashType
	Message string
}

// ErrorFlash builds an error flash, or nil for an empty message.
func ErrorFlash(message string) *Flash {
	if message == "" {
		return nil
	}
	return &Flash{Type: FlashError, Message: message}
}

// SuccessFlash builds a success flash.
func SuccessFlash(message string) *Flash {
	return &Flash{Type: FlashSuccess, Message: message}
}
