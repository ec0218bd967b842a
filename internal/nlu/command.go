package nlu

import "strings"

// Command is a normalized utterance: lowercase, single-spaced, without the
// sentence punctuation transcribers like to add.
type Command string

var punctuation = strings.NewReplacer(
	",", " ",
	"!", " ",
	"?", " ",
	";", " ",
	":", " ",
	"\"", " ",
)

func Normalize(text string) Command {
	s := strings.ToLower(text)
	s = punctuation.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".")
	return Command(strings.TrimSpace(s))
}

func (c Command) String() string {
	return string(c)
}

func (c Command) Empty() bool {
	return c == ""
}

func (c Command) contains(words ...string) bool {
	for _, w := range words {
		if strings.Contains(string(c), w) {
			return true
		}
	}
	return false
}
