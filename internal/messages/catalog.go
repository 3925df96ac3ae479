package messages

import "fmt"

// Catalog holds the user-facing reply templates. Templates render with
// positional fmt verbs so deployments can reword or translate them in
// config without touching admission logic.
type Catalog struct {
	InternalError    string `mapstructure:"internal_error"`
	JoinRequested    string `mapstructure:"join_requested"`
	CorrectAnswer    string `mapstructure:"correct_answer"`
	WrongAnswer      string `mapstructure:"wrong_answer"`
	TimedOut         string `mapstructure:"timed_out"`
	OngoingChallenge string `mapstructure:"ongoing_challenge"`
	NoChallenge      string `mapstructure:"no_challenge"`
	RetryTimer       string `mapstructure:"retry_timer"`
}

// Default returns the stock catalog.
func Default() Catalog {
	return Catalog{
		InternalError: "An internal error occurred. Please notify the admin or try again later.",
		JoinRequested: "Hi %s! You have requested to join %s.\nBefore I can approve your request, " +
			"please answer this question:\n\n%s\n\nReply with the correct answer. You have %d seconds.",
		CorrectAnswer:    "✅ Correct! You have been approved to join the group.",
		WrongAnswer:      "❌ Wrong answer! Your request has been declined. Please try again in %d seconds.",
		TimedOut:         "⏰ Your challenge attempt has timed out. Please try again in %d seconds.",
		OngoingChallenge: "You already have a pending question. Answer it first.",
		NoChallenge:      "I don't have any active challenges for you.",
		RetryTimer:       "Please wait for %d seconds before trying to join the group again.",
	}
}

// RenderJoinRequested fills the challenge delivery template.
func (c Catalog) RenderJoinRequested(name, groupTitle, question string, seconds int) string {
	return fmt.Sprintf(c.JoinRequested, name, groupTitle, question, seconds)
}

// RenderWrongAnswer fills the decline template with the retry window in seconds.
func (c Catalog) RenderWrongAnswer(seconds int) string {
	return fmt.Sprintf(c.WrongAnswer, seconds)
}

// RenderTimedOut fills the timeout template with the retry window in seconds.
func (c Catalog) RenderTimedOut(seconds int) string {
	return fmt.Sprintf(c.TimedOut, seconds)
}

// RenderRetryTimer fills the cooldown template with the seconds left on the hold.
func (c Catalog) RenderRetryTimer(seconds int) string {
	return fmt.Sprintf(c.RetryTimer, seconds)
}
