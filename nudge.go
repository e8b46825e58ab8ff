package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
)

// StartQuestionNudger periodically DMs the owner a digest of pending
// clarification questions over Slack. Disabled unless both slack_bot_token
// and slack_owner_id are configured.
func StartQuestionNudger(cfg Config, db *sql.DB) {
	if cfg.SlackBotToken == "" || cfg.SlackOwnerID == "" {
		log.Println("Slack not configured, question nudges disabled")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(cfg.QuestionNudgeSchedule)
	if err != nil {
		log.Printf("Invalid question_nudge_schedule '%s': %v, nudges disabled", cfg.QuestionNudgeSchedule, err)
		return
	}

	api := slack.New(cfg.SlackBotToken)
	log.Printf("Question nudges scheduled (cron: %s)", cfg.QuestionNudgeSchedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next question nudge at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)
			sendQuestionNudge(api, cfg, db)
		}
	}()
}

func sendQuestionNudge(api *slack.Client, cfg Config, db *sql.DB) {
	questions, err := GetPendingQuestions(db)
	if err != nil {
		log.Printf("Error loading pending questions for nudge: %v", err)
		return
	}
	if len(questions) == 0 {
		log.Println("No pending questions, skipping nudge")
		return
	}

	msg := formatQuestionDigest(questions)

	channel, _, _, err := api.OpenConversation(&slack.OpenConversationParameters{
		Users: []string{cfg.SlackOwnerID},
	})
	if err != nil {
		log.Printf("Error opening DM with %s: %v", cfg.SlackOwnerID, err)
		return
	}

	_, _, err = api.PostMessage(channel.ID, slack.MsgOptionText(msg, false))
	if err != nil {
		log.Printf("Error sending question nudge: %v", err)
		return
	}
	log.Printf("Sent question nudge (%d pending)", len(questions))
}

const nudgeDigestLimit = 5

func formatQuestionDigest(questions []ClarificationQuestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d pending question(s):\n", len(questions))

	shown := questions
	if len(shown) > nudgeDigestLimit {
		shown = shown[:nudgeDigestLimit]
	}
	for _, q := range shown {
		fmt.Fprintf(&b, "• #%d %s", q.ID, q.QuestionText)
		if strings.TrimSpace(q.Options) != "" {
			fmt.Fprintf(&b, " [%s]", q.Options)
		}
		b.WriteString("\n")
	}
	if len(questions) > nudgeDigestLimit {
		fmt.Fprintf(&b, "...and %d more.\n", len(questions)-nudgeDigestLimit)
	}
	b.WriteString("Answer them via `POST /api/questions/{id}/answer`.")
	return b.String()
}
