// pkg/utils/limits.go

package utils

import (
	"bufio"
	"context"
	"errors"
	"math"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
)

const (
	// LimitsConf is the main pam_limits configuration file.
	LimitsConf = "/etc/security/limits.conf"

	// LimitsDir holds drop-in pam_limits files, read after LimitsConf.
	LimitsDir = "/etc/security/limits.d"

	// Unlimited is the value used for "unlimited"/"infinity" entries.
	Unlimited = int64(math.MaxInt64)
)

// LimitEntry is one line of a limits file: <domain> <type> <item> <value>.
type LimitEntry struct {
	Domain string
	Type   string // soft, hard or -
	Item   string
	Value  int64
	Source string
}

// ParseLimits reads limits.conf formatted content. Malformed lines are
// ignored, as pam_limits does.
func ParseLimits(content, source string) []LimitEntry {
	var entries []LimitEntry
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			continue
		}
		value, ok := parseLimitValue(fields[3])
		if !ok {
			continue
		}
		entries = append(entries, LimitEntry{
			Domain: fields[0],
			Type:   fields[1],
			Item:   fields[2],
			Value:  value,
			Source: source,
		})
	}
	return entries
}

func parseLimitValue(s string) (int64, bool) {
	switch strings.ToLower(s) {
	case "unlimited", "infinity", "-1":
		return Unlimited, true
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatLimit renders a limit value.
func FormatLimit(v int64) string {
	if v == Unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(v, 10)
}

// EffectiveLimit resolves soft and hard values of item for user. Entries
// naming the user take precedence over "*"; within the same precedence a
// later entry wins. ok is false when no entry applies.
func EffectiveLimit(entries []LimitEntry, user, item string) (soft, hard int64, ok bool) {
	softRank, hardRank := -1, -1
	for _, e := range entries {
		if e.Item != item {
			continue
		}
		rank := -1
		switch {
		case e.Domain == user:
			rank = 1
		case e.Domain == "*":
			rank = 0
		default:
			continue
		}
		if (e.Type == "soft" || e.Type == "-") && rank >= softRank {
			soft, softRank = e.Value, rank
		}
		if (e.Type == "hard" || e.Type == "-") && rank >= hardRank {
			hard, hardRank = e.Value, rank
		}
	}
	if softRank < 0 && hardRank < 0 {
		return 0, 0, false
	}
	// A missing side defaults to the other one.
	if softRank < 0 {
		soft = hard
	}
	if hardRank < 0 {
		hard = soft
	}
	return soft, hard, true
}

// ReadLimits loads limits.conf and every *.conf drop-in in lexical order.
// A missing limits.conf counts as empty.
func ReadLimits(ctx context.Context, exec CommandExecutor) ([]LimitEntry, error) {
	var entries []LimitEntry
	data, err := exec.ReadFile(ctx, LimitsConf)
	switch {
	case err == nil:
		entries = ParseLimits(string(data), LimitsConf)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	out, err := exec.RunCommand(ctx, "ls", "-1", LimitsDir)
	if err != nil {
		return entries, nil
	}
	var dropins []string
	for _, name := range strings.Fields(out) {
		if strings.HasSuffix(name, ".conf") {
			dropins = append(dropins, path.Join(LimitsDir, name))
		}
	}
	sort.Strings(dropins)
	for _, p := range dropins {
		data, err := exec.ReadFile(ctx, p)
		if err != nil {
			continue
		}
		entries = append(entries, ParseLimits(string(data), p)...)
	}
	return entries, nil
}
