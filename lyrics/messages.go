package lyrics

import "strings"

// Placeholder texts shown in place of lyrics
type Messages struct {
	NoLyrics    string
	Unavailable string
}

var messages = map[string]Messages{
	"zh": {NoLyrics: "暂无歌词", Unavailable: "歌词获取失败"},
	"en": {NoLyrics: "No lyrics", Unavailable: "Lyrics unavailable"},
	"ja": {NoLyrics: "歌詞がありません", Unavailable: "歌詞を取得できませんでした"},
}

// MessagesFor picks placeholder texts by language tag, e.g. "zh-CN" uses "zh".
// Unknown languages get English.
func MessagesFor(lang string) Messages {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if m, ok := messages[lang]; ok {
		return m
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		if m, ok := messages[lang[:i]]; ok {
			return m
		}
	}
	return messages["en"]
}
