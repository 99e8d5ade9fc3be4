package assistant

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Outcome is the routing decision for one message.
type Outcome string

const (
	OutcomeTemplate     Outcome = "template"
	OutcomeDataRequired Outcome = "data_required"
	OutcomeLLMRequired  Outcome = "llm_required"
)

// Kind tells what a matched category produces.
type Kind int

const (
	KindTemplate Kind = iota
	KindData
)

// CategoryNotStudyMate answers short messages that have nothing to do with studying.
const CategoryNotStudyMate = "not_studymate"

// ShortMessageLimit is the length in characters under which an unmatched,
// irrelevant message is answered with the not_studymate template.
const ShortMessageLimit = 50

// Category is one row of the routing table.
type Category struct {
	Name     string
	Keywords []string
	Kind     Kind
	Response string
	Action   string
}

// Decision is the result of Classify.
type Decision struct {
	Outcome  Outcome
	Category string
	Response string
	Action   string
}

// categories is checked top to bottom and the first hit wins, so the my_
// rows must stay ahead of the generic rows sharing their words.
var categories = []Category{
	{
		Name:     "my_schedule",
		Keywords: []string{"lịch học của tôi", "lịch của tôi", "thời khóa biểu của tôi", "my schedule"},
		Kind:     KindData,
		Action:   "fetch_schedule",
		Response: "Mình cần xem lịch học của bạn để trả lời.",
	},
	{
		Name:     "my_events",
		Keywords: []string{"sự kiện của tôi", "my events"},
		Kind:     KindData,
		Action:   "fetch_events",
		Response: "Mình cần xem các sự kiện của bạn để trả lời.",
	},
	{
		Name:     "my_goals",
		Keywords: []string{"mục tiêu của tôi", "my goals"},
		Kind:     KindData,
		Action:   "fetch_goals",
		Response: "Mình cần xem các mục tiêu học tập của bạn để trả lời.",
	},
	{
		Name:     "my_groups",
		Keywords: []string{"nhóm của tôi", "nhóm học của tôi", "my groups"},
		Kind:     KindData,
		Action:   "fetch_groups",
		Response: "Mình cần xem các nhóm bạn đã tham gia để trả lời.",
	},
	{
		Name:     "my_partners",
		Keywords: []string{"bạn học của tôi", "my partners", "my study partners"},
		Kind:     KindData,
		Action:   "fetch_partners",
		Response: "Mình cần xem danh sách bạn học của bạn để trả lời.",
	},
	{
		Name:     "my_competitions",
		Keywords: []string{"cuộc thi của tôi", "my competitions"},
		Kind:     KindData,
		Action:   "fetch_competitions",
		Response: "Mình cần xem các cuộc thi bạn đã đăng ký để trả lời.",
	},
	{
		Name:     "my_profile",
		Keywords: []string{"hồ sơ của tôi", "thông tin của tôi", "my profile"},
		Kind:     KindData,
		Action:   "fetch_profile",
		Response: "Mình cần xem hồ sơ của bạn để trả lời.",
	},
	{
		Name:     "my_notifications",
		Keywords: []string{"thông báo của tôi", "my notifications"},
		Kind:     KindData,
		Action:   "fetch_notifications",
		Response: "Mình cần xem thông báo của bạn để trả lời.",
	},
	{
		Name:     "about_studymate",
		Keywords: []string{"studymate là gì", "giới thiệu studymate", "what is studymate"},
		Response: "StudyMate là nền tảng giúp sinh viên tìm bạn học, tham gia nhóm, thảo luận trên diễn đàn, theo dõi mục tiêu và tham gia các cuộc thi học thuật.",
	},
	{
		Name:     "find_partner",
		Keywords: []string{"tìm bạn học", "ghép bạn học", "find study partner", "find a study partner"},
		Response: "Vào mục Bạn học, lọc theo môn học, trường hoặc ngành. Khi hồ sơ của bạn đầy đủ, danh sách sẽ được sắp xếp theo độ phù hợp.",
	},
	{
		Name:     "groups_help",
		Keywords: []string{"tham gia nhóm", "tạo nhóm", "join group", "create group"},
		Response: "Vào mục Nhóm học để tìm nhóm theo môn học hoặc bấm Tạo nhóm để mời bạn bè cùng học.",
	},
	{
		Name:     "forum_help",
		Keywords: []string{"diễn đàn", "đăng câu hỏi", "forum"},
		Response: "Trên Diễn đàn bạn có thể đặt câu hỏi, trả lời và bình chọn câu trả lời hay nhất.",
	},
	{
		Name:     "blog_help",
		Keywords: []string{"viết blog", "đăng bài viết", "write a blog"},
		Response: "Vào mục Blog và bấm Viết bài để chia sẻ kinh nghiệm học tập của bạn.",
	},
	{
		Name:     "calendar_help",
		Keywords: []string{"tạo sự kiện", "thêm sự kiện", "lịch sự kiện", "add event"},
		Response: "Mở Lịch, chọn ngày và bấm Thêm sự kiện. Bạn có thể mời bạn học hoặc cả nhóm.",
	},
	{
		Name:     "competition_help",
		Keywords: []string{"cuộc thi", "competition"},
		Response: "Xem các cuộc thi đang mở trong mục Cuộc thi và bấm Đăng ký để tham gia.",
	},
	{
		Name:     "goals_help",
		Keywords: []string{"đặt mục tiêu", "tạo mục tiêu", "set a goal", "set goal"},
		Response: "Vào mục Mục tiêu, bấm Tạo mục tiêu và chia nhỏ thành các cột mốc để dễ theo dõi.",
	},
	{
		Name:     "pomodoro",
		Keywords: []string{"pomodoro"},
		Response: "Pomodoro: học tập trung 25 phút, nghỉ 5 phút, sau 4 lượt thì nghỉ dài 15 đến 30 phút.",
	},
	{
		Name:     "account_help",
		Keywords: []string{"quên mật khẩu", "đổi mật khẩu", "reset password", "forgot password"},
		Response: "Bấm Quên mật khẩu ở trang đăng nhập, hệ thống sẽ gửi liên kết đặt lại qua email của bạn.",
	},
}

var notStudyMate = Category{
	Name:     CategoryNotStudyMate,
	Response: "Mình là trợ lý học tập của StudyMate nên chỉ hỗ trợ các câu hỏi về học tập và cách dùng StudyMate. Bạn cần giúp gì về việc học không?",
}

// relevantWords mark a message as worth sending to the model even when short.
var relevantWords = []string{
	"học", "bài", "bài tập", "thi", "kỳ thi", "môn", "điểm", "gpa", "nhóm", "lịch",
	"mục tiêu", "ôn", "giảng viên", "đề", "toán", "tiếng anh", "ielts", "toeic",
	"lập trình", "studymate", "study", "exam", "homework", "learn", "lesson", "course",
}

var (
	compiledCategories = compileCategories(categories)
	compiledRelevant   = compileKeywords(relevantWords)
)

type compiledKeyword struct {
	plain  string
	folded string
}

type compiledCategory struct {
	Category
	keywords []compiledKeyword
}

func compileKeywords(words []string) []compiledKeyword {
	out := make([]compiledKeyword, 0, len(words))
	for _, w := range words {
		n := normalizeText(w)
		out = append(out, compiledKeyword{plain: n, folded: foldDiacritics(n)})
	}
	return out
}

func compileCategories(cats []Category) []compiledCategory {
	out := make([]compiledCategory, 0, len(cats))
	for _, c := range cats {
		out = append(out, compiledCategory{Category: c, keywords: compileKeywords(c.Keywords)})
	}
	return out
}

// Categories returns a copy of the routing table in match order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Classify routes a message to a template, a data request or the model.
func Classify(message string) Decision {
	text := newMatchText(message)

	for _, c := range compiledCategories {
		if !text.containsAny(c.keywords) {
			continue
		}
		if c.Kind == KindData {
			return Decision{Outcome: OutcomeDataRequired, Category: c.Name, Response: c.Response, Action: c.Action}
		}
		return Decision{Outcome: OutcomeTemplate, Category: c.Name, Response: c.Response}
	}

	short := utf8.RuneCountInString(strings.TrimSpace(message)) < ShortMessageLimit
	if short && !text.containsAny(compiledRelevant) {
		return Decision{Outcome: OutcomeTemplate, Category: notStudyMate.Name, Response: notStudyMate.Response}
	}
	return Decision{Outcome: OutcomeLLMRequired}
}

type matchText struct {
	padded string
	// ascii is set when the user typed without diacritics; keywords are then
	// compared in their folded form.
	ascii bool
}

func newMatchText(message string) matchText {
	n := normalizeText(message)
	return matchText{padded: " " + n + " ", ascii: n == foldDiacritics(n)}
}

func (m matchText) containsAny(keywords []compiledKeyword) bool {
	for _, k := range keywords {
		kw := k.plain
		if m.ascii {
			kw = k.folded
		}
		if kw != "" && strings.Contains(m.padded, " "+kw+" ") {
			return true
		}
	}
	return false
}

// normalizeText lower-cases, turns punctuation into spaces and collapses runs
// of whitespace so keywords only match on word boundaries.
func normalizeText(s string) string {
	s = norm.NFC.String(strings.ToLower(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return strings.ReplaceAll(out, "đ", "d")
}
