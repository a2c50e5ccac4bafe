package config

// ChannelsConfig holds one config block per supported transport:
// Telegram, Discord, WhatsApp, Feishu, DingTalk, QQ, and the custom
// camera-device socket.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Feishu   FeishuConfig   `json:"feishu"`
	DingTalk DingTalkConfig `json:"dingtalk"`
	QQ       QQConfig       `json:"qq"`
	Camera   CameraConfig   `json:"camera"`
}

// TelegramConfig configures the long-polling Telegram Bot API adapter.
type TelegramConfig struct {
	Enabled        bool                `json:"enabled"`
	Token          string              `json:"token"`
	AllowFrom      FlexibleStringSlice `json:"allow_from"`
	DMPolicy       string              `json:"dm_policy,omitempty"`
	GroupPolicy    string              `json:"group_policy,omitempty"`
	RequireMention *bool               `json:"require_mention,omitempty"`
	StreamMode     string              `json:"stream_mode,omitempty"` // "off" (default) or "partial"
}

// DiscordConfig configures the discordgo gateway-socket adapter.
type DiscordConfig struct {
	Enabled        bool                `json:"enabled"`
	Token          string              `json:"token"`
	AllowFrom      FlexibleStringSlice `json:"allow_from"`
	DMPolicy       string              `json:"dm_policy,omitempty"`
	GroupPolicy    string              `json:"group_policy,omitempty"`
	RequireMention *bool               `json:"require_mention,omitempty"`
}

// WhatsAppConfig configures the whatsmeow multi-device adapter.
type WhatsAppConfig struct {
	Enabled     bool                `json:"enabled"`
	SessionFile string              `json:"session_file,omitempty"` // local SQLite device-pairing store
	AllowFrom   FlexibleStringSlice `json:"allow_from"`
	DMPolicy    string              `json:"dm_policy,omitempty"`
	GroupPolicy string              `json:"group_policy,omitempty"`
}

// FeishuConfig configures the Lark/Feishu bot adapter. In "webhook"
// mode (the default) inbound events arrive via internal/webhook's
// /webhook/feishu endpoint; "websocket" mode is reserved for a future
// long-connection client and currently stubbed.
type FeishuConfig struct {
	Enabled           bool                `json:"enabled"`
	AppID             string              `json:"app_id"`
	AppSecret         string              `json:"app_secret"`
	VerificationToken string              `json:"verification_token,omitempty"`
	EncryptKey        string              `json:"encrypt_key,omitempty"`
	Domain            string              `json:"domain,omitempty"`          // "feishu" or "lark" (default)
	ConnectionMode    string              `json:"connection_mode,omitempty"` // "webhook" (default) or "websocket"
	RenderMode        string              `json:"render_mode,omitempty"`     // "auto" (default), "text", or "card"
	AllowFrom         FlexibleStringSlice `json:"allow_from"`
	DMPolicy          string              `json:"dm_policy,omitempty"`
	GroupPolicy       string              `json:"group_policy,omitempty"`
	RequireMention    *bool               `json:"require_mention,omitempty"`
}

// DingTalkConfig configures the DingTalk group-bot adapter. Inbound
// messages arrive via internal/webhook's /webhook/dingtalk endpoint
// (DingTalk's "outgoing robot" callback); outbound replies use the
// per-conversation session webhook DingTalk includes on each inbound
// event, falling back to WebhookURL/Secret (a persistent, HMAC-signed
// "custom robot" webhook) when no session webhook is cached.
type DingTalkConfig struct {
	Enabled      bool                `json:"enabled"`
	ClientID     string              `json:"client_id"`
	ClientSecret string              `json:"client_secret"`
	WebhookURL   string              `json:"webhook_url,omitempty"`
	Secret       string              `json:"secret,omitempty"`
	AllowFrom    FlexibleStringSlice `json:"allow_from"`
	DMPolicy     string              `json:"dm_policy,omitempty"`
	GroupPolicy  string              `json:"group_policy,omitempty"`
}

// QQConfig configures the QQ guild-bot webhook adapter.
type QQConfig struct {
	Enabled   bool                `json:"enabled"`
	AppID     string              `json:"app_id"`
	Token     string              `json:"token"`
	Secret    string              `json:"secret"`
	AllowFrom FlexibleStringSlice `json:"allow_from"`
	DMPolicy  string              `json:"dm_policy,omitempty"`
}

// CameraConfig configures the custom camera-device WebSocket server:
// physical devices dial in and exchange JSON frames over one socket
// per device, rather than talking to a hosted platform API.
type CameraConfig struct {
	Enabled   bool   `json:"enabled"`
	ListenAddr string `json:"listen_addr,omitempty"` // e.g. ":8181"
	AuthToken string `json:"auth_token,omitempty"`   // shared secret devices present on connect
}
