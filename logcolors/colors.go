package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Yellow = "\033[33m"

	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"

	Red       = "\033[31m"
	BrightRed = "\033[91m"
)

// Playback engine log prefixes
const (
	LogPlayer    = Green + "[Player]" + Reset
	LogQueue     = BrightGreen + "[Queue]" + Reset
	LogTransport = Blue + "[Transport]" + Reset
	LogDevice    = BrightBlue + "[Device]" + Reset
	LogRecovery  = Purple + "[Recovery]" + Reset
	LogResolve   = Cyan + "[Resolve]" + Reset
	LogHistory   = BrightCyan + "[History]" + Reset
)

// Lyrics log prefixes
const (
	LogLyrics      = Blue + "[Lyrics]" + Reset
	LogLyricsFetch = BrightBlue + "[Lyrics:Fetch]" + Reset
	LogLyricsParse = Cyan + "[Lyrics:Parse]" + Reset
)

// Storage and preferences log prefixes
const (
	LogStoreInit = Blue + "[Store:Init]" + Reset
	LogStore     = Blue + "[Store]" + Reset
	LogStoreSave = Blue + "[Store:Save]" + Reset
	LogSettings  = Cyan + "[Settings]" + Reset
)

// Rate limiting log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Purple + "[APIKey]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// trackColors rotate per track id so the same track is always logged in the same color
var trackColors = []string{
	Green, Blue, Purple, Cyan, Red,
	BrightGreen, BrightBlue, BrightMagenta, BrightCyan, BrightRed,
}

// Track returns a colored track id for log messages.
// Same id always gets the same color.
func Track(id string) string {
	hash := 0
	for _, c := range id {
		hash += int(c)
	}
	color := trackColors[hash%len(trackColors)]
	return color + id + Reset
}

// Server/Init log prefixes
const (
	LogServer  = Green + "[Server]" + Reset
	LogConfig  = Cyan + "[Config]" + Reset
	LogStats   = Blue + "[Stats]" + Reset
	LogHTTP    = Cyan + "[HTTP]" + Reset
	LogCatalog = Purple + "[Catalog]" + Reset
	LogWarning = Red + "[Warning]" + Reset
)
