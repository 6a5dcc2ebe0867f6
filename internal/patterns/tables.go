package patterns

import (
	"regexp"
	"strings"
)

// Language is a normalized base language code.
type Language string

const (
	English    Language = "en"
	Spanish    Language = "es"
	Portuguese Language = "pt"
	French     Language = "fr"
	German     Language = "de"
	Italian    Language = "it"
	Russian    Language = "ru"
	Chinese    Language = "zh"
	Japanese   Language = "ja"
	Korean     Language = "ko"
)

// DefaultLanguage is used for unknown or empty language codes.
const DefaultLanguage = English

// Table is the per-language configuration. Patterns are tried in order and
// the first match wins.
type Table struct {
	Chapter  []*regexp.Regexp
	Section  []*regexp.Regexp
	Dialogue []string
}

func (t *Table) clone() *Table {
	return &Table{
		Chapter:  append([]*regexp.Regexp(nil), t.Chapter...),
		Section:  append([]*regexp.Regexp(nil), t.Section...),
		Dialogue: append([]string(nil), t.Dialogue...),
	}
}

// headingTail matches an optional separator and inline title. Capture group 2
// of every chapter pattern is the title.
const headingTail = `\s*(?:[:.\-–—]\s*(.*?))?\s*$`

// chapterPattern builds "<prefix> <number>[: title]". Compound number words
// must precede simple ones since alternation is leftmost-first.
func chapterPattern(prefix string, numberWords ...string) *regexp.Regexp {
	alts := append([]string{`\d+`}, numberWords...)
	alts = append(alts, `[ivxlcdm]+`)
	return regexp.MustCompile(`(?i)^(?:` + prefix + `)\s*(` + strings.Join(alts, "|") + `)` + headingTail)
}

// sectionPattern anchors a list of named front/back-matter headings.
func sectionPattern(names string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^(?:` + names + `)(?:\s*[:.\-–—]\s*.*)?$`)
}

const englishNumbers = `(?:twenty|thirty|forty|fifty)[- ](?:one|two|three|four|five|six|seven|eight|nine)|` +
	`one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|thirteen|fourteen|fifteen|` +
	`sixteen|seventeen|eighteen|nineteen|twenty|thirty|forty|fifty`

// cjkChapter matches 第N章 style headings. The separator is optional.
var cjkChapter = regexp.MustCompile(`^第\s*([0-9０-９一二三四五六七八九十百千零〇两]+)\s*[章回节節卷話话]\s*(?:[:：.\-–—]?\s*(.*?))?\s*$`)

var builtin = map[Language]*Table{
	English: {
		Chapter: []*regexp.Regexp{
			chapterPattern(`chapter`, englishNumbers),
			chapterPattern(`ch\.`),
		},
		Section: []*regexp.Regexp{
			sectionPattern(`prologue|epilogue|afterword|foreword|preface|introduction|interlude|appendix|acknowledge?ments|author'?s note`),
			regexp.MustCompile(`(?i)^(?:book|part|volume)\s+(?:\d+|` + englishNumbers + `|[ivxlcdm]+)(?:\s*[:.\-–—]\s*.*)?$`),
		},
		Dialogue: []string{`"`, "“", "‘"},
	},
	Spanish: {
		Chapter: []*regexp.Regexp{
			chapterPattern(`cap[ií]tulo`, `uno|dos|tres|cuatro|cinco|seis|siete|ocho|nueve|diez`),
		},
		Section: []*regexp.Regexp{
			sectionPattern(`pr[oó]logo|ep[ií]logo|introducci[oó]n|prefacio|interludio|agradecimientos|nota del autor`),
		},
		Dialogue: []string{"—", "―", "«", "“", `"`},
	},
	Portuguese: {
		Chapter: []*regexp.Regexp{
			chapterPattern(`cap[ií]tulo`, `um|dois|tr[eê]s|quatro|cinco|seis|sete|oito|nove|dez`),
		},
		Section: []*regexp.Regexp{
			sectionPattern(`pr[oó]logo|ep[ií]logo|posf[aá]cio|pref[aá]cio|introdu[cç][aã]o|interl[uú]dio|agradecimentos`),
		},
		Dialogue: []string{"—", "–", "“", "«", `"`},
	},
	French: {
		Chapter: []*regexp.Regexp{
			chapterPattern(`chapitre`, `premier|un|deux|trois|quatre|cinq|six|sept|huit|neuf|dix`),
		},
		Section: []*regexp.Regexp{
			sectionPattern(`prologue|[ée]pilogue|postface|pr[ée]face|avant-propos|introduction|interlude|remerciements`),
		},
		Dialogue: []string{"«", "—", "–", "“", `"`},
	},
	German: {
		Chapter: []*regexp.Regexp{
			chapterPattern(`kapitel`, `eins|zwei|drei|vier|f[üu]nf|sechs|sieben|acht|neun|zehn`),
			regexp.MustCompile(`(?i)^(\d+)\.\s*kapitel` + headingTail),
		},
		Section: []*regexp.Regexp{
			sectionPattern(`prolog|epilog|nachwort|vorwort|einleitung|zwischenspiel|danksagung`),
		},
		Dialogue: []string{"„", "»", "«", "‚", "“", `"`},
	},
	Italian: {
		Chapter: []*regexp.Regexp{
			chapterPattern(`capitolo`, `uno|due|tre|quattro|cinque|sei|sette|otto|nove|dieci`),
		},
		Section: []*regexp.Regexp{
			sectionPattern(`prologo|epilogo|postfazione|prefazione|introduzione|interludio|ringraziamenti`),
		},
		Dialogue: []string{"«", "—", "“", `"`},
	},
	Russian: {
		Chapter: []*regexp.Regexp{
			chapterPattern(`глава`, `первая|вторая|третья|четвертая|четвёртая|пятая|шестая|седьмая|восьмая|девятая|десятая`),
		},
		Section: []*regexp.Regexp{
			sectionPattern(`пролог|эпилог|послесловие|предисловие|введение|интерлюдия`),
		},
		Dialogue: []string{"«", "—", "–", "„", `"`},
	},
	Chinese: {
		Chapter: []*regexp.Regexp{cjkChapter},
		Section: []*regexp.Regexp{
			sectionPattern(`序章|序言|楔子|尾声|尾聲|后记|後記|前言|番外`),
		},
		Dialogue: []string{"「", "『", "“", `"`},
	},
	Japanese: {
		Chapter: []*regexp.Regexp{
			cjkChapter,
			regexp.MustCompile(`^([0-9０-９]+)\s*章` + `\s*(?:[:：.\-–—]?\s*(.*?))?\s*$`),
		},
		Section: []*regexp.Regexp{
			sectionPattern(`プロローグ|エピローグ|あとがき|まえがき|序章|終章|間章`),
		},
		Dialogue: []string{"「", "『", "“", `"`},
	},
	Korean: {
		Chapter: []*regexp.Regexp{
			regexp.MustCompile(`^제\s*(\d+)\s*장\s*(?:[:.\-–—]?\s*(.*?))?\s*$`),
		},
		Section: []*regexp.Regexp{
			sectionPattern(`프롤로그|에필로그|후기|서문`),
		},
		Dialogue: []string{"“", `"`, "「", "『"},
	},
}

// pageLinePatterns recognize running footers and page-number artifacts.
var pageLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{1,4}$`),
	regexp.MustCompile(`(?i)^(?:page|p\.|pg\.?|pag\.?|p[aá]gina|seite|стр\.?)\s*\d{1,4}(?:\s*(?:of|de|von|/)\s*\d{1,4})?$`),
	regexp.MustCompile(`(?i)^\d{1,4}\s*\|\s*(?:page|p[aá]gina|seite)?$`),
	regexp.MustCompile(`(?i)^(?:page|p[aá]gina|seite)?\s*\|\s*\d{1,4}$`),
	regexp.MustCompile(`^[-–—]\s*\d{1,4}\s*[-–—]$`),
	regexp.MustCompile(`(?i)^\d{1,4}\s*(?:of|/)\s*\d{1,4}$`),
	regexp.MustCompile(`^第?\s*\d{1,4}\s*[页頁]$`),
}

// openingQuotes always mark a line as opening prose, whatever the language.
var openingQuotes = []string{`"`, "“", "‘", "'", "«", "»", "„", "‚", "「", "『"}
