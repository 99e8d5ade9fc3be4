package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/broly1009a/studymate-sub002/matching"
)

type seedOptions struct {
	Count       int
	Seed        int64
	Truncate    bool
	Password    string
	PartnerRate float64 // proportion of users that publish a partner card
}

var seedOpts seedOptions

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with deterministic demo users and partner cards",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := seedOpts.validate(); err != nil {
			return err
		}
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		db, err := openDB(cmd.Context(), cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()
		return runSeed(ctx, db, seedOpts, time.Now(), logger)
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedOpts.Count, "count", 60, "Number of users to create")
	seedCmd.Flags().Int64Var(&seedOpts.Seed, "seed", 42, "RNG seed (deterministic)")
	seedCmd.Flags().BoolVar(&seedOpts.Truncate, "truncate", false, "TRUNCATE target tables before running")
	seedCmd.Flags().StringVar(&seedOpts.Password, "password", "test1234", "Password assigned to all users")
	seedCmd.Flags().Float64Var(&seedOpts.PartnerRate, "partner-rate", 0.8, "Proportion of users with a partner card (0..1)")

	rootCmd.AddCommand(seedCmd)
}

func (o seedOptions) validate() error {
	if o.Count < 2 {
		return errors.New("--count must be at least 2")
	}
	if o.PartnerRate < 0 || o.PartnerRate > 1 {
		return errors.New("--partner-rate must be in range 0..1")
	}
	if len(o.Password) < 6 {
		return errors.New("--password must be at least 6 characters")
	}
	return nil
}

// seedUser is one generated account with its optional partner card.
type seedUser struct {
	Email    string
	FullName string
	Role     string
	User     User
	Card     *Partner
}

// buildSeedUsers is pure: the same options and clock always give the same rows.
// The first two accounts are fixed test logins; the first one is an admin.
func buildSeedUsers(r *rand.Rand, o seedOptions, now time.Time) []seedUser {
	universities := matching.Universities()
	majors := matching.Majors()
	needs := matching.LearningNeeds()
	goals := matching.LearningGoals()
	habits := matching.StudyHabits()
	subjects := matching.Subjects()
	types := matching.MBTITypes()
	cardGoals := append(append([]string{}, needs...), goals...)

	out := make([]seedUser, 0, o.Count)
	emails := make(map[string]struct{}, o.Count)
	for i := 0; i < o.Count; i++ {
		su := seedUser{Role: roleUser}
		switch i {
		case 0:
			su.Email, su.FullName, su.Role = "user1@studymate.local", "Nguyễn Văn An", roleAdmin
		case 1:
			su.Email, su.FullName = "user2@studymate.local", "Trần Thị Bình"
		default:
			su.FullName = vietnameseName(r)
			su.Email = uniqueEmail(r, emails)
		}
		emails[su.Email] = struct{}{}

		uni := universities[r.Intn(len(universities))]
		major := majors[r.Intn(len(majors))]
		mbti := string(types[r.Intn(len(types))])
		birth := now.AddDate(-(18 + r.Intn(10)), -r.Intn(12), -r.Intn(28))
		gpa := float64(50+r.Intn(51)) / 10 // 5.0 .. 10.0

		su.User = User{
			FullName:      su.FullName,
			Role:          su.Role,
			University:    &uni,
			Major:         &major,
			LearningNeeds: pickN(r, needs, 1+r.Intn(3)),
			LearningGoals: pickN(r, goals, 1+r.Intn(3)),
			StudyHabits:   pickN(r, habits, 1+r.Intn(3)),
			MBTIType:      &mbti,
			BirthDate:     &birth,
			GPA:           &gpa,
		}

		if i < 2 || r.Float64() < o.PartnerRate {
			age := matching.AgeAt(birth, now)
			su.Card = &Partner{
				Name:         su.FullName,
				Bio:          sampleBio(r),
				University:   &uni,
				Major:        &major,
				Subjects:     pickN(r, subjects, 2+r.Intn(3)),
				StudyStyle:   pickN(r, habits, 1+r.Intn(3)),
				Goals:        pickN(r, cardGoals, 1+r.Intn(3)),
				Availability: pickN(r, availabilitySlots, 1+r.Intn(4)),
				MBTIType:     &mbti,
				Age:          &age,
				Rating:       float64(30+r.Intn(21)) / 10, // 3.0 .. 5.0
				ReviewCount:  r.Intn(40),
			}
		}
		out = append(out, su)
	}
	return out
}

func runSeed(ctx context.Context, db *sql.DB, o seedOptions, now time.Time, logger *zap.Logger) error {
	r := rand.New(rand.NewSource(o.Seed))
	users := buildSeedUsers(r, o, now)

	pwHash, err := hashPassword(o.Password)
	if err != nil {
		return err
	}

	// One transaction so a constraint failure leaves nothing behind.
	return withTx(ctx, db, func(tx *sql.Tx) error {
		if o.Truncate {
			if _, err := tx.ExecContext(ctx, `TRUNCATE TABLE partners, users RESTART IDENTITY CASCADE`); err != nil {
				return fmt.Errorf("truncate: %w", err)
			}
			logger.Info("truncated users and partners")
		}

		userStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO users (email, password_hash, full_name, role, university, major,
			                   learning_needs, learning_goals, study_habits, mbti_type, birth_date, gpa, last_online)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (email) DO UPDATE SET
				password_hash = EXCLUDED.password_hash,
				full_name = EXCLUDED.full_name,
				role = EXCLUDED.role
			RETURNING id`)
		if err != nil {
			return err
		}
		defer userStmt.Close()

		cardStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO partners (user_id, name, bio, university, major, subjects, study_style, goals,
			                      availability, mbti_type, age, rating, review_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (user_id) DO NOTHING`)
		if err != nil {
			return err
		}
		defer cardStmt.Close()

		cards := 0
		for i, su := range users {
			u := su.User
			lastOnline := now.Add(-time.Duration(r.Intn(14*24)) * time.Hour)

			var id int
			if err := userStmt.QueryRowContext(ctx,
				su.Email, pwHash, u.FullName, u.Role, nullString(u.University), nullString(u.Major),
				pq.Array(u.LearningNeeds), pq.Array(u.LearningGoals), pq.Array(u.StudyHabits),
				nullString(u.MBTIType), nullTime(u.BirthDate), nullFloat(u.GPA), lastOnline,
			).Scan(&id); err != nil {
				return fmt.Errorf("insert user %d (%s): %w", i, su.Email, err)
			}

			if su.Card == nil {
				continue
			}
			c := su.Card
			if _, err := cardStmt.ExecContext(ctx,
				id, c.Name, c.Bio, nullString(c.University), nullString(c.Major),
				pq.Array(c.Subjects), pq.Array(c.StudyStyle), pq.Array(c.Goals), pq.Array(c.Availability),
				nullString(c.MBTIType), nullInt(c.Age), c.Rating, c.ReviewCount,
			); err != nil {
				return fmt.Errorf("insert partner card for user %d: %w", id, err)
			}
			cards++
		}

		logger.Info("seed complete", zap.Int("users", len(users)), zap.Int("partner_cards", cards))
		return nil
	})
}

var availabilitySlots = []string{
	"Sáng thứ 2", "Tối thứ 2", "Sáng thứ 3", "Tối thứ 3", "Tối thứ 4",
	"Chiều thứ 5", "Tối thứ 6", "Sáng thứ 7", "Chiều chủ nhật", "Tối chủ nhật",
}

// pickN returns n distinct entries of opts in a random order.
func pickN(r *rand.Rand, opts []string, n int) []string {
	if n > len(opts) {
		n = len(opts)
	}
	idx := r.Perm(len(opts))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = opts[j]
	}
	return out
}

func vietnameseName(r *rand.Rand) string {
	last := []string{"Nguyễn", "Trần", "Lê", "Phạm", "Hoàng", "Huỳnh", "Phan", "Vũ", "Võ", "Đặng"}[r.Intn(10)]
	middle := []string{"Văn", "Thị", "Minh", "Ngọc", "Quốc", "Thu", "Gia", "Hải"}[r.Intn(8)]
	first := []string{"An", "Bình", "Chi", "Dũng", "Hà", "Khoa", "Linh", "Nam", "Phương", "Quân", "Trang", "Vy"}[r.Intn(12)]
	return fmt.Sprintf("%s %s %s", last, middle, first)
}

func uniqueEmail(r *rand.Rand, taken map[string]struct{}) string {
	for {
		e := fmt.Sprintf("student%05d@studymate.local", r.Intn(100000))
		if _, ok := taken[e]; !ok {
			return e
		}
	}
}

func sampleBio(r *rand.Rand) string {
	phr := []string{
		"Thích học nhóm buổi tối, cần bạn cùng ôn thi cuối kỳ.",
		"Đang luyện IELTS, muốn tìm bạn luyện speaking.",
		"Sinh viên năm 3, thích giải bài tập cùng nhau.",
		"Học theo Pomodoro, cần bạn giữ kỷ luật học tập.",
		"Muốn cùng làm đồ án và chia sẻ tài liệu.",
	}
	return phr[r.Intn(len(phr))]
}
