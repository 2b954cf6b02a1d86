// Package speech - lines.go centralises every spoken string. Keep lines
// short and direct; the TTS engine handles inflection.
package speech

import (
	"fmt"
	"strings"

	"github.com/hammamikhairi/navcompanion/internal/domain"
)

// ── Navigation commands ──────────────────────────────────────────

var commandLines = map[domain.Command]string{
	domain.CommandMoveForward: "Clear path ahead",
	domain.CommandTurnLeft:    "Obstacle ahead, veer left",
	domain.CommandTurnRight:   "Obstacle ahead, veer right",
	domain.CommandStop:        "Stop immediately",
}

// LineForCommand returns the phrase for a navigation command. Unknown
// commands are read out with underscores turned into spaces.
func LineForCommand(command domain.Command) string {
	if line, ok := commandLines[command]; ok {
		return line
	}
	return strings.ToLower(strings.ReplaceAll(string(command), "_", " "))
}

// LineForDecision prefers the decision's own message over the canned
// command phrase.
func LineForDecision(d domain.Decision) string {
	if msg := strings.TrimSpace(d.Message); msg != "" {
		return msg
	}
	return LineForCommand(d.Command)
}

// ── Route guidance ───────────────────────────────────────────────

// LineRoute is spoken for each new turn-by-turn instruction.
func LineRoute(instruction, distance string) string {
	instruction = strings.TrimRight(strings.TrimSpace(instruction), ".")
	distance = strings.TrimSpace(distance)
	if distance == "" {
		return instruction + "."
	}
	return fmt.Sprintf("%s. Continue for %s.", instruction, distance)
}

// ── Session ──────────────────────────────────────────────────────

func LineWelcome() string {
	return "Navigation assistant ready."
}

func LineShutdown() string {
	return "Shutting down."
}

func LineGuidanceLost() string {
	return "Guidance is unavailable. Stay where you are."
}
