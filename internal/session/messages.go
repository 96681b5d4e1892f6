package session

import "fmt"

const (
	statusTextListening       = "Listening..."
	statusTextProcessingText  = "Processing your entry..."
	statusTextProcessingImage = "Identifying equipment..."
	statusTextSuccess         = "Exercise logged!"
	statusTextIdle            = "Tap mic to log, or camera to identify."
	statusTextIdentifiedFmt   = "Identified: %s. Tap mic to log details."
	statusTextErrorFmt        = "Error: %s"
)

func statusText(status Status, errMessage, equipment string) string {
	switch status {
	case StatusListening:
		return statusTextListening
	case StatusProcessingText:
		return statusTextProcessingText
	case StatusProcessingImage:
		return statusTextProcessingImage
	case StatusError:
		return fmt.Sprintf(statusTextErrorFmt, errMessage)
	case StatusSuccess:
		return statusTextSuccess
	default:
		if equipment != "" {
			return fmt.Sprintf(statusTextIdentifiedFmt, equipment)
		}
		return statusTextIdle
	}
}
