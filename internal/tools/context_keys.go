package tools

import "context"

// Tool execution context keys. These replace mutable setter fields on
// tool instances so a single Tool value is safe to call concurrently —
// per-call data rides on the context passed to each Execute (the
// registry forwards the caller's context unchanged), never on the tool
// struct itself.
type toolContextKey string

const (
	ctxChannel  toolContextKey = "tool_channel"
	ctxChatID   toolContextKey = "tool_chat_id"
	ctxWorkspace toolContextKey = "tool_workspace"
)

func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, ctxChannel, channel)
}

func ChannelFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxChannel).(string)
	return v
}

func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, ctxChatID, chatID)
}

func ChatIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxChatID).(string)
	return v
}

func WithWorkspace(ctx context.Context, ws string) context.Context {
	return context.WithValue(ctx, ctxWorkspace, ws)
}

func WorkspaceFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxWorkspace).(string)
	return v
}
