package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
	"github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

// ChannelPrompts settings shared by the Project Owl prompts
type ChannelPrompts struct {
	Model     string
	MaxTokens int
}

const usernameRule = "When referring to users, always use their username (prefixed with @)."

func (c ChannelPrompts) request(system, user string, jsonMode bool) ai.CompletionRequest {
	return ai.CompletionRequest{
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		JSONMode:  jsonMode,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Text: system},
			{Role: ai.RoleUser, Text: user},
		},
	}
}

func encodeMessages(msgs []channels.ProcessedMessage) string {
	b, err := json.Marshal(msgs)
	if err != nil {
		// ProcessedMessage only has strings; Marshal cannot fail
		return "[]"
	}
	return string(b)
}

// DailySummary asks for one day's summary as a JSON object
func (c ChannelPrompts) DailySummary(date string, msgs []channels.ProcessedMessage) ai.CompletionRequest {
	system := `You are a helpful assistant that generates daily summaries from Slack messages. Focus on key updates, decisions, progress, and questions. ` + usernameRule + ` Format the output as a JSON object with the following structure:
{
  "summary": "Brief overview of the day's key points",
  "decisions": ["List of decisions made"],
  "progress": ["List of progress updates"],
  "questions": ["List of open questions"]
}`
	user := fmt.Sprintf("Here are Slack messages from %s. Please generate a summary that captures the key points of the day:\n\n%s", date, encodeMessages(msgs))
	return c.request(system, user, true)
}

// ActionItems asks for a JSON array of action items
func (c ChannelPrompts) ActionItems(msgs []channels.ProcessedMessage) ai.CompletionRequest {
	system := `You are a helpful assistant that extracts action items and tasks from Slack messages. ` + usernameRule + ` Return the list as a JSON array of strings. Look for tasks that are assigned, mentioned, or implied in the conversation.`
	user := "Here are the Slack messages. Please extract any action items or tasks mentioned:\n\n" + encodeMessages(msgs)
	return c.request(system, user, false)
}

// Risks asks for a JSON array of risks, blockers or concerns
func (c ChannelPrompts) Risks(msgs []channels.ProcessedMessage) ai.CompletionRequest {
	system := `You are a helpful assistant that identifies potential risks, blockers, or concerns from Slack messages. ` + usernameRule + ` Return the list as a JSON array of strings.`
	user := "Here are the Slack messages. Please identify any potential risks, blockers, or concerns mentioned:\n\n" + encodeMessages(msgs)
	return c.request(system, user, false)
}

// ChannelAnalysis asks for the full analysis stored on refresh
func (c ChannelPrompts) ChannelAnalysis(channelName string, msgs []channels.ProcessedMessage) ai.CompletionRequest {
	system := `You are a project assistant that analyzes a Slack channel for a project dashboard. ` + usernameRule + ` Respond with one JSON object only:
{
  "summary": "Concise recap of the key points discussed",
  "decisions": ["Decisions made"],
  "progress": ["Progress updates"],
  "questions": ["Open questions"],
  "actionItems": ["Action items as 'description (@assignee, due: YYYY-MM-DD)' when an owner is known, e.g. 'Update the runbook (@ana, due: 2025-03-07)'"],
  "risks": ["Risks, blockers or concerns"]
}`
	user := fmt.Sprintf("Channel #%s. Analyze the following Slack conversation:\n\n%s", channelName, encodeMessages(msgs))
	return c.request(system, user, true)
}

// Digest Slack message posted after a sync
func (ChannelPrompts) Digest(a *channels.ChannelAnalysis) string {
	var b strings.Builder
	b.WriteString("*Daily Project Update*\n")
	b.WriteString(a.Summary)
	b.WriteString("\n")
	section := func(title, empty string, items []string) {
		fmt.Fprintf(&b, "\n*%s*\n", title)
		if len(items) == 0 {
			b.WriteString(empty + "\n")
			return
		}
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
	}
	section("Risks & Blockers", "No risks identified", a.Risks)
	section("Action Items", "No action items identified", a.ActionItems)
	return strings.TrimRight(b.String(), "\n")
}
