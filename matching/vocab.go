package matching

// Controlled vocabularies used by profile forms, the seeder and the scorer.
// The tables are built once and only handed out as copies.

var universities = []string{
	"ĐH Bách Khoa",
	"ĐH Bách Khoa Hà Nội",
	"ĐH Quốc Gia Hà Nội",
	"ĐH Quốc Gia TP.HCM",
	"ĐH Khoa Học Tự Nhiên",
	"ĐH Công Nghệ Thông Tin",
	"ĐH Kinh Tế Quốc Dân",
	"ĐH Kinh Tế TP.HCM",
	"ĐH FPT",
	"ĐH Ngoại Thương",
	"ĐH Sư Phạm",
	"ĐH Y Hà Nội",
	"ĐH Cần Thơ",
	"ĐH Đà Nẵng",
	"RMIT Việt Nam",
}

// majorGroups maps a field to the majors that get partial credit against each
// other. Membership is by normalised name, not substring.
var majorGroups = map[string][]string{
	"computing": {
		"CS", "Computer Science", "Khoa Học Máy Tính", "Công Nghệ Thông Tin",
		"Information Technology", "Kỹ Thuật Phần Mềm", "Software Engineering",
		"Hệ Thống Thông Tin", "An Toàn Thông Tin", "Trí Tuệ Nhân Tạo", "Data Science",
	},
	"engineering": {
		"Kỹ Thuật Điện", "Điện Tử Viễn Thông", "Cơ Khí", "Kỹ Thuật Xây Dựng",
		"Tự Động Hóa", "Electrical Engineering", "Mechanical Engineering",
	},
	"business": {
		"Quản Trị Kinh Doanh", "Kinh Tế", "Tài Chính Ngân Hàng", "Kế Toán",
		"Marketing", "Kinh Doanh Quốc Tế", "Business Administration", "Finance",
	},
	"science": {
		"Toán Học", "Vật Lý", "Hóa Học", "Sinh Học", "Mathematics", "Physics",
	},
	"health": {
		"Y Khoa", "Dược Học", "Điều Dưỡng", "Răng Hàm Mặt", "Medicine", "Pharmacy",
	},
	"languages": {
		"Ngôn Ngữ Anh", "Ngôn Ngữ Nhật", "Ngôn Ngữ Hàn", "Ngôn Ngữ Trung", "English Studies",
	},
	"education": {
		"Sư Phạm Toán", "Sư Phạm Văn", "Sư Phạm Anh", "Giáo Dục Tiểu Học",
	},
}

var learningNeeds = []string{
	"find study partner",
	"exam prep",
	"homework help",
	"project teammate",
	"language exchange",
	"accountability",
	"tìm bạn học",
	"ôn thi",
	"làm bài tập nhóm",
}

var learningGoals = []string{
	"improve gpa",
	"pass final exams",
	"ielts 7.0",
	"toeic 800",
	"scholarship",
	"internship",
	"graduate on time",
	"learn programming",
	"research paper",
}

var studyHabits = []string{
	"morning",
	"evening",
	"late night",
	"weekend",
	"online",
	"offline",
	"library",
	"cafe",
	"pomodoro",
	"group discussion",
	"self-study",
}

var subjects = []string{
	"Toán Cao Cấp",
	"Xác Suất Thống Kê",
	"Lập Trình C",
	"Cấu Trúc Dữ Liệu",
	"Cơ Sở Dữ Liệu",
	"Mạng Máy Tính",
	"Vật Lý Đại Cương",
	"Kinh Tế Vi Mô",
	"Tiếng Anh",
	"Triết Học",
}

var majorGroupIndex = buildMajorGroupIndex()

func buildMajorGroupIndex() map[string]string {
	idx := make(map[string]string)
	for group, majors := range majorGroups {
		for _, m := range majors {
			idx[normalize(m)] = group
		}
	}
	return idx
}

// MajorGroup returns the field a major belongs to, or "" when the major is not
// in the vocabulary.
func MajorGroup(major string) string {
	return majorGroupIndex[normalize(major)]
}

func Universities() []string  { return clone(universities) }
func LearningNeeds() []string { return clone(learningNeeds) }
func LearningGoals() []string { return clone(learningGoals) }
func StudyHabits() []string   { return clone(studyHabits) }
func Subjects() []string      { return clone(subjects) }

// Majors returns every major in the vocabulary, grouped fields flattened.
func Majors() []string {
	var out []string
	for _, group := range []string{"computing", "engineering", "business", "science", "health", "languages", "education"} {
		out = append(out, majorGroups[group]...)
	}
	return out
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
