package tools

// Result is a tool's internal return shape. The ToolRegistry contract
// exposed to AgentLoop is the simpler `string | error`, and the
// built-in tools return that directly without using Result. A Result
// is collapsed to a single string by String before it reaches the
// conversation.
type Result struct {
	Text    string
	IsError bool
}

func NewResult(text string) Result   { return Result{Text: text} }
func ErrorResult(text string) Result { return Result{Text: text, IsError: true} }

// String collapses a Result to the plain string ToolRegistry.Execute
// returns.
func (r Result) String() string { return r.Text }
