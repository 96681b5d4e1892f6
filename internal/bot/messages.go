package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/gymvoice/internal/equipment"
	"github.com/foxseedlab/gymvoice/internal/parser"
	"github.com/foxseedlab/gymvoice/internal/report"
	"github.com/foxseedlab/gymvoice/internal/session"
	"github.com/foxseedlab/gymvoice/internal/speech"
	"github.com/foxseedlab/gymvoice/internal/workout"
)

const (
	slashCommandStartDescription   = "Start a new workout session."
	slashCommandLogDescription     = "Log an exercise, e.g. \"bench press 3 sets of 10 at 135 pounds\"."
	slashCommandListenDescription  = "Dictate your next exercise from the voice channel you are in."
	slashCommandStopDescription    = "Stop listening without logging anything."
	slashCommandPhotoDescription   = "Identify a machine from a photo so the next entry uses it."
	slashCommandEndDescription     = "Finish the workout and get your report."
	slashCommandDiscardDescription = "Throw away the current workout without saving it."
	slashCommandHistoryDescription = "Show your recent workouts."
	slashCommandReportDescription  = "Show the full report of a past workout."
	slashCommandAskDescription     = "Ask the trainer anything."

	optionEntryDescription    = "What you did"
	optionPhotoDescription    = "Photo of the equipment"
	optionWeightDescription   = "Your body weight in lbs"
	optionHeightDescription   = "Your height, e.g. 5'10\""
	optionIDDescription       = "Workout ID from /history"
	optionQuestionDescription = "Your question"

	messageEphemeralWrongGuild     = ":warning: **This server is not set up for GymVoice.**"
	messageEphemeralUnknownCommand = ":warning: **Unknown command.**"
	messageEphemeralLookupFailed   = ":warning: **Could not check your voice channel.**"
	messageEphemeralJoinVCFirst    = ":warning: **Join a voice channel first, then run /listen.**"
	messageEphemeralNotImage       = ":warning: **Please attach an image.**"
	messageEphemeralNoPhoto        = ":warning: **Attach a photo of the equipment.**"
	messageEphemeralNoWorkout      = ":warning: **No workout in progress.** Run /workout-start to begin."
	messageEphemeralAlreadyActive  = ":warning: **A workout is already in progress.** Run /workout-end or /workout-discard first."
	messageEphemeralNotListening   = ":warning: **Not listening right now.**"
	messageEphemeralStartFailed    = ":warning: **Could not start the workout.**"
	messageEphemeralHistoryFailed  = ":warning: **Could not load your workout history.**"

	messageWorkoutStarted  = ":muscle: **Workout started!**\n-# Log sets with /log or /listen. Send a machine photo with /equipment first if you are unsure of its name."
	messageWorkoutDiscard  = ":wastebasket: **Workout discarded.** Nothing was saved."
	messageListenStopped   = ":stop_button: **Stopped listening.** Nothing was logged."
	messageListenStopSent  = ":stop_button: **Stopping...**"
	messageListeningFormat = ":microphone2: **Listening...** in <#%s>\n-# Say your set, e.g. \"squats 5 sets of 5 at 225\". /listen-stop cancels."
	messageLoggedFormat    = ":white_check_mark: **Exercise logged!**\n**%s**: %s"
	messageIdentifiedFmt   = ":mag: **Identified: %s.**\n-# Your next entry will use it. Log it with /log or /listen."
	messageNoHistory       = ":notepad_spiral: **No workouts yet.** Run /workout-start to log your first one."
	messageHistoryTitle    = ":notepad_spiral: **Recent workouts**"
	messageReportNotFound  = ":warning: **Workout not found.**"
	messageReportFailed    = ":warning: **Could not build that report.**"
	messageEndedFormat     = ":trophy: **Workout complete!**\nTime: %s\nExercises: %d • Cardio: %d • Volume: %d lbs\n-# Generating your AI analysis..."
	messageAttachmentTitle = ":page_facing_up: **Workout report**"

	messageErrorFormat = ":x: **Error:** %s"

	maxMessageLength = 2000
)

func listeningMessage(channelID string) string {
	return fmt.Sprintf(messageListeningFormat, channelID)
}

func loggedMessage(ex workout.Exercise) string {
	return fmt.Sprintf(messageLoggedFormat, ex.Name, report.ExerciseDetails(ex))
}

func identifiedMessage(name string) string {
	return fmt.Sprintf(messageIdentifiedFmt, name)
}

func endedMessage(stats report.Stats) string {
	return fmt.Sprintf(messageEndedFormat, stats.Duration, stats.ExerciseCount, stats.CardioCount, stats.TotalVolume)
}

func historyMessage(sessions []workout.Session, loc *time.Location) string {
	if len(sessions) == 0 {
		return messageNoHistory
	}
	lines := []string{messageHistoryTitle}
	for _, s := range sessions {
		stats := report.Summarize(s, time.Now())
		calories := "…"
		if s.Analysis != nil {
			calories = s.Analysis.CaloriesBurned
		}
		lines = append(lines, fmt.Sprintf("- %s • %s • %d exercises • %s cal\n  -# `%s`",
			s.StartTime.In(loc).Format("Jan 2, 3:04 PM"), stats.Duration, stats.ExerciseCount, calories, s.ID))
	}
	lines = append(lines, "-# /report id:<id> shows the full report.")
	return truncate(strings.Join(lines, "\n"))
}

func reportMessage(s workout.Session, stats report.Stats, loc *time.Location) string {
	body := report.FormatText(s, stats, loc)
	return truncate(messageAttachmentTitle + "\n```\n" + body + "\n```")
}

func reportFilename(s workout.Session, loc *time.Location) string {
	return fmt.Sprintf("gymvoice-%s.txt", s.StartTime.In(loc).Format("20060102-1504"))
}

// errorMessage maps a failed command to the text shown to the user.
func errorMessage(err error) string {
	var text string
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		return messageEphemeralNoWorkout
	case errors.Is(err, session.ErrSessionActive):
		return messageEphemeralAlreadyActive
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrEntryInFlight):
		text = "Still working on your last entry. Try again in a moment."
	case errors.Is(err, session.ErrSessionEnding):
		text = "Your workout is being saved. Start a new one once the report is posted."
	case errors.Is(err, session.ErrNoExercises):
		text = "Log at least one exercise before ending the workout."
	case errors.Is(err, session.ErrEmptyEntry):
		text = "Tell me what you did, e.g. \"leg press 3x12 at 200\"."
	case errors.Is(err, session.ErrStaleResult):
		text = "That workout is no longer active."
	case errors.Is(err, parser.ErrParseFailed):
		text = "Could not understand that entry. Please try again."
	case errors.Is(err, equipment.ErrIdentificationFailed):
		text = "Failed to identify image."
	case errors.Is(err, ErrNotInVoiceChannel):
		return messageEphemeralJoinVCFirst
	case errors.Is(err, ErrVoiceBusy):
		text = "Someone else is using voice capture right now. Use /log instead."
	case errors.Is(err, speech.ErrUnsupported):
		text = "Voice input is not available here. Use /log instead."
	case errors.Is(err, speech.ErrPermissionDenied):
		text = "Microphone permission denied."
	default:
		text = "Something went wrong. Please try again."
	}
	return fmt.Sprintf(messageErrorFormat, text)
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageLength {
		return s
	}
	return string(r[:maxMessageLength-1]) + "…"
}
