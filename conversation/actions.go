package conversation

import "strings"

const (
	// ActionsSentinel separates the answer body from the suggested actions.
	ActionsSentinel     = "次にするアクション:"
	MaxSuggestedActions = 2
)

// ActionsInstruction is appended to the outbound user turn so the model emits
// its follow-up suggestions after the sentinel line.
const ActionsInstruction = "\n\n---\n" +
	"回答本文のあとに「" + ActionsSentinel + "」という行を1行だけ出力し、" +
	"その次の行から、ユーザーが次に取りそうなアクションをちょうど2つ、1行に1つずつ短い名詞句で書いてください。" +
	"箇条書きの記号や番号は付けないでください。"

// Reply is a model response split into its parts.
type Reply struct {
	Body    string
	Actions []string
}

// ParseResponse splits raw model output at the first sentinel. A missing
// sentinel is not an error: the whole text is the body and there are no actions.
func ParseResponse(raw string) Reply {
	i := strings.Index(raw, ActionsSentinel)
	if i < 0 {
		return Reply{Body: strings.TrimSpace(raw)}
	}

	r := Reply{Body: strings.TrimSpace(raw[:i])}
	rest := strings.TrimSpace(raw[i+len(ActionsSentinel):])
	for _, line := range strings.Split(rest, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.Actions = append(r.Actions, line)
		if len(r.Actions) == MaxSuggestedActions {
			break
		}
	}
	return r
}
