package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client used for roster downloads.
var UserAgent = "Go-Congrats/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Go Congrats"
	AppID             = "com.github.tartampluch.go-congrats"
	KeyringService    = "com.github.tartampluch.go-congrats"
	LogFileName       = "app.log"
	DefaultConfigFile = "config.yaml"
	DriverPostgres    = "postgres"
	EnvFile           = ".env"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	// Used for logs and simulated emails, which contain personal data.
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagConfig       = "config"
	FlagImport       = "import"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging to stdout"
	FlagDescConfig   = "Path to the YAML settings file"
	FlagDescImport   = "Import clients from a .vcf file or CardDAV URL before serving"
	MsgVersionOutput = "%s version %s built %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 8080
	DefaultDaysAhead   = 7
	DefaultTone        = "respectful"
	DefaultLocale      = "en"
	DefaultLeapYear    = 2000 // Leap year fallback for year-less dates like --02-29
	DefaultCachePrefix = "congrats:gen"
	DefaultSimulateDir = "logs/emails"
	DefaultSESRegion   = "us-east-1"
	DefaultFromName    = "Go Congrats"
	DefaultOrg         = "Our Company"

	// StatsWindowDays is the lookahead used by the "this week" statistic.
	StatsWindowDays = 7

	// WishProbability is the chance of appending a supplemental wish.
	WishProbability = 0.5

	// JubileeMinAge and JubileeStep define round-number birthdays (30, 40, 50...).
	JubileeMinAge = 30
	JubileeStep   = 10

	// Age bands for the age_adjective context field.
	AgeBandMature    = 30
	AgeBandRespected = 50
)

// Event types understood by the generator templates.
const (
	EventBirthday     = "birthday"
	EventProfessional = "professional"
	EventHoliday      = "holiday"
)

// SegmentUnspecified is the statistics label for clients without a segment.
const SegmentUnspecified = "unspecified"

// DefaultSegment is assigned to clients created over the API without one.
const DefaultSegment = "New"

// Delivery statuses reported by transports.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusSimulated = "simulated"
	StatusFailed    = "failed"
)

// Delivery methods.
const (
	DeliverySES        = "ses"
	DeliverySimulation = "simulation"
)

// Delivery channels.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelSMS      = "sms"
)

// -----------------------------------------------------------------------------
// Localization Keys (go-i18n message IDs)
// -----------------------------------------------------------------------------

const (
	LocalesDir    = "locales"
	LocalePrefix  = "active."
	LocaleExt     = ".json"
	LocaleDefault = "default"

	// Greeting templates resolve tmpl_<event>_<segment>, then tmpl_<event>_default,
	// then TKeyTmplDefault.
	TKeyTmplPrefix    = "tmpl_"
	TKeyTmplDefault   = "tmpl_default"
	TKeyWishPrefix    = "wish_"
	TKeySubjectPrefix = "subject_"
	TKeySubjectDef    = "subject_default"
	TKeyJubilee       = "jubilee_note"
	TKeyAIMarker      = "ai_marker"
	TKeyFbCompany     = "fallback_company"
	TKeyFbPosition    = "fallback_position"
	TKeyFbSegment     = "fallback_segment"
	TKeyEmailSign     = "email_signature"
	TKeyEmailHeader   = "email_header_"
	TKeyEmailHeadDef  = "email_header_default"
	TKeyEmailNotice   = "email_notice"
)

// Generation methods reported in results.
const (
	MethodTemplate = "template"
	MethodAI       = "ai"
)

// Tones derived from the canonical segment.
const (
	ToneFormal    = "formal"
	ToneFriendly  = "friendly"
	ToneWelcoming = "welcoming"
)

// -----------------------------------------------------------------------------
// API Limits
// -----------------------------------------------------------------------------

const (
	DefaultListLimit    = 100
	MaxListLimit        = 1000
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
	MinUpcomingDays     = 1
	MaxUpcomingDays     = 365
	MaxBatchSize        = 10
	DefaultTodayClients = 5
	MaxTodayClients     = 20
	MinMessageLength    = 10
	MaxStoredTextLength = 2000
	MaxSubjectLength    = 78 // RFC 2822 line length recommendation
	SubjectEllipsis     = "..."
	PreviewLength       = 100
	RecentHistoryLimit  = 10
	TodayPreviewLength  = 50
)

// Column sizes of the relational schema, in characters.
const (
	MaxNameLength      = 100
	MaxEmailLength     = 255
	MaxPhoneLength     = 20
	MaxCompanyLength   = 255
	MaxPositionLength  = 100
	MaxSegmentLength   = 50
	MaxEventTypeLength = 50
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	// iCal Properties
	ICalVersion   = "2.0"
	ICalProdid    = "-//Go Congrats//Events//EN"
	ICalCalName   = "Client Birthdays"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"
	ICalDomain    = "gocongrats"

	// iCal/vCard Fields
	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDTStart     = "DTSTART"
	PropDTStamp     = "DTSTAMP"
	PropRefresh     = "REFRESH-INTERVAL"
	PropAction      = "ACTION"
	PropDescription = "DESCRIPTION"
	PropTrigger     = "TRIGGER"
	PropPriority    = "PRIORITY"
	PropCategories  = "CATEGORIES"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"

	VCardBDAY  = "BDAY"
	VCardFN    = "FN"
	VCardEmail = "EMAIL"
	VCardTel   = "TEL"
	VCardOrg   = "ORG"
	VCardTitle = "TITLE"

	DefaultICalRefresh = 1 * time.Hour

	// DefaultReminderTrigger fires the calendar alarm one day before the event.
	DefaultReminderTrigger = "-P1D"

	// FormatEventSummary and FormatEventSummaryAge label feed events.
	FormatEventSummary    = "Birthday: %s"
	FormatEventSummaryAge = "Birthday: %s (%d)"

	// StubVCalendar is the minimal valid iCalendar object used when no events are found.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Data Formats
// -----------------------------------------------------------------------------

const (
	// Date layouts used for parsing vCard BDAY fields and API payloads.
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"
	DateFormatNoYearD   = "--01-02"
	DateFormatNoYearB   = "--0102"

	// UID Generation
	FormatUID = "%d-%s@%s"

	// Cache key layout: prefix:client_id:event_type:tone
	FormatCacheKey = "%s:%d:%s:%s"

	// Email
	FormatFromAddress = "%s <%s>"
	EmailCharset      = "UTF-8"
	EmailAtReplace    = "_at_"

	// File Extensions
	ExtHTML = ".html"

	// Simulated email file name: simulated_<timestamp>_<recipient>.html
	FormatSimulatedFile = "simulated_%s_%s" + ExtHTML
	SimulatedTimeLayout = "20060102_150405"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	MaxHTTPResponseSize = 64 * 1024 * 1024 // 64MB of vCards is plenty for a roster
	CORSMaxAge          = 300
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
)

// -----------------------------------------------------------------------------
// HTTP Routes
// -----------------------------------------------------------------------------

const (
	RouteHealth      = "/health"
	RouteConfig      = "/config"
	RouteCalendar    = "/calendar.ics"
	RouteAPI         = "/api/v1"
	RouteClients     = "/clients"
	RouteImport      = "/import"
	RouteEvents      = "/events"
	RouteUpcoming    = "/upcoming"
	RouteToday       = "/today"
	RouteDate        = "/date/{date}"
	RouteStats       = "/stats"
	RouteCongrats    = "/congratulations"
	RouteGenerate    = "/generate"
	RouteBatch       = "/generate/batch"
	RouteGenToday    = "/generate/today"
	RouteSend        = "/send"
	RouteCache       = "/cache"
	RouteID          = "/{id}"
	ParamID          = "id"
	ParamDate        = "date"
	QuerySkip        = "skip"
	QueryLimit       = "limit"
	QuerySearch      = "search"
	QuerySegment     = "segment"
	QueryDays        = "days"
	QueryClientID    = "client_id"
	QueryStatus      = "status"
	QueryChannel     = "channel"
	MaxRequestBody   = 1 << 20
	FeedDaysAhead    = 365
	DefaultFeedTTL   = 1 * time.Hour
	ConfigURLPreview = 50
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"
	HeaderRetryAfter      = "Retry-After"

	MimeJSON            = "application/json; charset=utf-8"
	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"
	RetryAfterSeconds   = "5"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrConfigRead       = "failed to read settings file"
	ErrConfigParse      = "failed to parse settings file"
	ErrConfigValue      = "invalid settings value"
	ErrSourceEmpty      = "import error: no source given"
	ErrFetcherMissing   = "internal error: network fetcher is not initialized"
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrInvalidURL       = "invalid URL structure"
	ErrProtocol         = "unsupported protocol scheme (http/https only)"
	ErrVCardParse       = "failed to parse vCard stream"
	ErrICalEncode       = "failed to encode iCalendar data"
	ErrDateParse        = "unable to parse date"
	ErrLogFile          = "failed to open log file"
	ErrCacheDir         = "could not determine user cache dir"
	ErrCreateDir        = "could not create app cache dir"
	ErrAppFailed        = "application failed unexpectedly"
	ErrWriteResp        = "failed to write response body"
	ErrLocalesAccess    = "failed to access embedded locales"
	ErrLocaleLoad       = "failed to load locale file"
	ErrClientNotFound   = "client not found"
	ErrDuplicateEmail   = "client with this email already exists"
	ErrClientQuery      = "client query failed"
	ErrSchema           = "failed to ensure database schema"
	ErrDatabaseOpen     = "failed to open database"
	ErrDatabasePing     = "database is unreachable"
	ErrRedisURL         = "invalid redis URL"
	ErrCacheEncode      = "failed to encode cached result"
	ErrCacheDecode      = "failed to decode cached result"
	ErrCacheIO          = "cache backend error"
	ErrHistoryNotFound  = "congratulation not found"
	ErrHistoryQuery     = "history query failed"
	ErrSenderNotConfig  = "email transport is not configured"
	ErrEmailRender      = "failed to render email body"
	ErrEmailDeliver     = "email delivery failed"
	ErrSimulateWrite    = "failed to write simulated email"
	ErrAWSConfig        = "failed to load AWS config"
	ErrSESUnreachable   = "SES account check failed"
	ErrNoRecipient      = "recipient email is empty"
	ErrAIUnavailable    = "AI completion unavailable"
	ErrTemplateRender   = "template rendering failed"
	ErrGenerationFailed = "generation failed"
	ErrRequestCreate    = "failed to create request"
	ErrNetwork          = "network error during fetch"
	ErrBadStatus        = "server returned unexpected status"
)

// -----------------------------------------------------------------------------
// HTTP Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInternalErr   = "internal server error"
	HTTPMsgBadJSON       = "invalid JSON body"
	HTTPMsgBadID         = "invalid id"
	HTTPMsgBadDate       = "invalid date, use YYYY-MM-DD"
	HTTPMsgBatchTooLarge = "too many clients in one batch, maximum is %d"
	HTTPMsgMissingIDs    = "clients not found: %s"
	HTTPMsgTextTooShort  = "congratulation text is too short"
	HTTPMsgNoBirthdays   = "no birthdays today"
	HTTPMsgClientMissing = "client with ID %d not found"
	HTTPMsgSent          = "congratulation for %s sent (%s)"
	HTTPMsgUnknownClient = "unknown client"
	HTTPMsgCacheCleared  = "generation cache cleared"
	HTTPMsgHealthy       = "healthy"
	HTTPMsgUnhealthy     = "unhealthy"
	HTTPMsgMemory        = "in-memory"
	HTTPMsgOK            = "ok"
	HTTPMsgModeDev       = "development"
	HTTPMsgModeProd      = "production"
	HTTPMsgConfigOff     = "configuration endpoint is disabled in production"
	HTTPMsgBadQuery      = "invalid query parameter: %s"
	HTTPMsgBadChannel    = "unsupported channel, use email, telegram or sms"
	HTTPMsgNoClientIDs   = "client_ids must not be empty"
	HTTPMsgNoSource      = "source is required"
	HTTPMsgRemoteOnly    = "only http(s) sources can be imported over the API"
	HTTPMsgFeedNotReady  = "calendar feed is not ready"
	HTTPMsgCreated       = "client created"
	HTTPMsgCongratGone   = "congratulation with ID %d not found"
	HTTPMsgEventTooLong  = "event_type exceeds %d characters"
)

// -----------------------------------------------------------------------------
// Fallbacks
// -----------------------------------------------------------------------------

const (
	FallbackName     = "Unknown"
	FallbackCompany  = "your company"
	FallbackPosition = "your position"
	FallbackSegment  = "client"

	// FallbackGreeting is used only when every catalog template failed to render.
	FallbackGreeting = "Dear %s,\n\nPlease accept our warmest congratulations!"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStarting     = "Starting application"
	MsgAppStop         = "Application stopped gracefully"
	MsgLogWarning      = "Warning: %s at %s: %v\n"
	MsgServerListen    = "HTTP server listening"
	MsgServerStop      = "Shutting down HTTP server..."
	MsgFeedUpdated     = "Calendar feed rebuilt"
	MsgFeedFailed      = "Calendar feed rebuild failed"
	MsgSkippedCard     = "Skipping malformed vCard"
	MsgSkippedDate     = "Skipping invalid date format"
	MsgSkippedNoEmail  = "Skipping vCard without email"
	MsgSkippedDup      = "Skipping duplicate client"
	MsgImportStarted   = "Roster import started"
	MsgImportDone      = "Roster import finished"
	MsgDetectDone      = "Event detection finished"
	MsgBdayToday       = "Birthday found today"
	MsgCacheHit        = "Generation served from cache"
	MsgGenerated       = "Congratulation generated"
	MsgBatchItemFailed = "Batch generation item failed"
	MsgBatchDone       = "Batch generation finished"
	MsgCacheCleared    = "Generation cache cleared"
	MsgCacheFailed     = "Generation cache unavailable, continuing without it"
	MsgAIFallback      = "AI rendering unavailable, using templates"
	MsgRenderFallback  = "Template rendering failed, using fallback greeting"
	MsgEmailSent       = "Email sent"
	MsgEmailSimulated  = "Email simulated"
	MsgEmailFailed     = "Email not sent"
	MsgSMTPNotConfig   = "Email transport not configured, emails will be simulated"
	MsgEmailFallback   = "Real delivery failed, falling back to simulation"
	MsgBulkDone        = "Bulk send finished"
	MsgLocaleSkip      = "Skipping non-locale file"
	MsgLocaleLoaded    = "Locale loaded successfully"
	MsgSecretMissing   = "Secret not found in keyring"
	MsgStorageMemory   = "No database configured, using in-memory storage"
	MsgStoragePostgres = "Using PostgreSQL storage"
	MsgEmailSES        = "Using SES email transport"
	MsgCacheRedis      = "Using Redis generation cache"
	MsgHistoryFailed   = "Failed to record congratulation history"
	MsgDownloadStart   = "Initiating vCard download"
	MsgDownloading     = "vCards downloading"
	MsgFetchBadStatus  = "Server returned error status"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyAddr      = "addr"
	LogKeyValue     = "value"
	LogKeyStats     = "stats"
	LogKeyCount     = "count"
	LogKeyTotal     = "total"
	LogKeyFound     = "found"
	LogKeyImported  = "imported"
	LogKeySkipped   = "skipped"
	LogKeySuccess   = "successful"
	LogKeyFailed    = "failed"
	LogKeyEmail     = "email"
	LogKeyClientID  = "client_id"
	LogKeyEvent     = "event_type"
	LogKeyTone      = "tone"
	LogKeyMethod    = "method"
	LogKeyMessageID = "message_id"
	LogKeyDaysAhead = "days_ahead"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyDuration  = "duration_ms"
	LogKeySecret    = "secret"
	LogKeyProcessed = "processed"
	LogKeyLength    = "content_length"
	LogKeySource    = "source"
	LogKeyPath      = "path"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompMain      = "main"
	CompConfig    = "config"
	CompEngine    = "engine"
	CompGenerator = "generator"
	CompCatalog   = "catalog"
	CompCache     = "cache"
	CompRoster    = "roster"
	CompFetcher   = "fetcher"
	CompSender    = "sender"
	CompServer    = "server"
)
