package main

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/broly1009a/studymate-sub002/matching"
)

const maxRating = 5.0

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type partnerItem struct {
	Partner
	Owner          *UserSummary        `json:"owner,omitempty"`
	MatchScore     *float64            `json:"matchScore,omitempty"`
	MatchReasons   []string            `json:"matchReasons,omitempty"`
	MatchBreakdown *matching.Breakdown `json:"matchBreakdown,omitempty"`
}

type partnerListResponse struct {
	Success         bool          `json:"success"`
	Data            []partnerItem `json:"data"`
	Pagination      pagination    `json:"pagination"`
	HasMatchScoring bool          `json:"hasMatchScoring"`
}

// partnerInput is the body of POST /partners and PUT /partners/{id}.
type partnerInput struct {
	Name         string   `json:"name" validate:"omitempty,max=100"`
	Avatar       string   `json:"avatar" validate:"omitempty,max=500"`
	Bio          string   `json:"bio" validate:"omitempty,max=2000"`
	University   *string  `json:"university" validate:"omitempty,max=200"`
	Major        *string  `json:"major" validate:"omitempty,max=200"`
	Subjects     []string `json:"subjects" validate:"omitempty,max=30,dive,required,max=100"`
	StudyStyle   []string `json:"studyStyle" validate:"omitempty,max=20,dive,required,max=100"`
	Goals        []string `json:"goals" validate:"omitempty,max=20,dive,required,max=100"`
	Availability []string `json:"availability" validate:"omitempty,max=21,dive,required,max=100"`
	MBTIType     *string  `json:"mbtiType" validate:"omitempty,mbti"`
	Age          *int     `json:"age" validate:"omitempty,gte=13,lte=100"`
}

func (in *partnerInput) applyTo(p *Partner) {
	p.Name = strings.TrimSpace(in.Name)
	p.Avatar = strings.TrimSpace(in.Avatar)
	p.Bio = strings.TrimSpace(in.Bio)
	p.University = nil
	if in.University != nil {
		p.University = optionalText(*in.University)
	}
	p.Major = nil
	if in.Major != nil {
		p.Major = optionalText(*in.Major)
	}
	p.Subjects = cleanList(in.Subjects)
	p.StudyStyle = cleanList(in.StudyStyle)
	p.Goals = cleanList(in.Goals)
	p.Availability = cleanList(in.Availability)
	p.MBTIType = nil
	if in.MBTIType != nil {
		if t, ok := matching.ParseMBTI(*in.MBTIType); ok {
			s := string(t)
			p.MBTIType = &s
		}
	}
	p.Age = in.Age
}

// partnerListQuery parses the listing parameters. Any malformed value is a
// client error and stops the request before the store is queried.
func partnerListQuery(r *http.Request, limits PartnersConfig) (PartnerQuery, float64, error) {
	q := PartnerQuery{
		Subject:    r.URL.Query().Get("subject"),
		Search:     r.URL.Query().Get("search"),
		University: r.URL.Query().Get("university"),
		Major:      r.URL.Query().Get("major"),
	}

	var err error
	if q.Page, err = queryInt(r, "page", 1); err != nil {
		return q, 0, err
	}
	if q.Page < 1 {
		return q, 0, errors.New("page must be at least 1")
	}
	if q.Limit, err = queryInt(r, "limit", limits.DefaultLimit); err != nil {
		return q, 0, err
	}
	if q.Limit < 1 {
		return q, 0, errors.New("limit must be at least 1")
	}
	if q.Limit > limits.MaxLimit {
		q.Limit = limits.MaxLimit
	}

	minRating, _, err := queryFloat(r, "minRating")
	if err != nil {
		return q, 0, err
	}
	if minRating < 0 || minRating > maxRating {
		return q, 0, errors.New("minRating must be between 0 and 5")
	}
	q.MinRating = minRating

	minScore, _, err := queryFloat(r, "minMatchScore")
	if err != nil {
		return q, 0, err
	}
	if minScore < 0 || minScore > matching.MaxScore {
		return q, 0, errors.New("minMatchScore must be between 0 and 100")
	}
	return q, minScore, nil
}

func listPartnersHandler(store Store, limits PartnersConfig, logger *zap.Logger) http.HandlerFunc {
	return optionalAuth(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		q, minScore, err := partnerListQuery(r, limits)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		userID, authed := userIDFromContext(ctx)
		if authed {
			q.ExcludeUserID = userID
		}

		page, err := store.ListPartners(ctx, q)
		if err != nil {
			logger.Error("listing partners", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not load partners")
			return
		}

		owners, err := loadOwners(ctx, store, page.Items)
		if err != nil {
			logger.Warn("loading partner owners", zap.Error(err))
			owners = map[int]*UserSummary{}
		}

		resp := partnerListResponse{
			Success: true,
			Data:    make([]partnerItem, 0, len(page.Items)),
			Pagination: pagination{
				Page:       q.Page,
				Limit:      q.Limit,
				Total:      page.Total,
				TotalPages: int(math.Ceil(float64(page.Total) / float64(q.Limit))),
			},
		}

		var seeker *User
		if authed {
			seeker, err = store.User(ctx, userID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				logger.Warn("loading seeker profile", zap.Int("user_id", userID), zap.Error(err))
			}
		}

		if seeker == nil {
			for _, p := range page.Items {
				resp.Data = append(resp.Data, partnerItem{Partner: p, Owner: owners[p.UserID]})
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}

		byID := make(map[int]Partner, len(page.Items))
		candidates := make([]matching.CandidateProfile, 0, len(page.Items))
		for _, p := range page.Items {
			byID[p.ID] = p
			candidates = append(candidates, p.Candidate())
		}

		for _, m := range matching.Rank(seeker.Seeker(time.Now()), candidates, minScore) {
			p := byID[m.Candidate.ID]
			score := roundScore(m.Score)
			breakdown := m.Breakdown
			resp.Data = append(resp.Data, partnerItem{
				Partner:        p,
				Owner:          owners[p.UserID],
				MatchScore:     &score,
				MatchReasons:   nonNil(breakdown.Reasons),
				MatchBreakdown: &breakdown,
			})
		}
		resp.HasMatchScoring = true

		logger.Debug("scored partner page",
			zap.Int("user_id", userID),
			zap.Int("candidates", len(candidates)),
			zap.Int("kept", len(resp.Data)),
			zap.Float64("min_score", minScore),
		)
		writeJSON(w, http.StatusOK, resp)
	})
}

func roundScore(v float64) float64 {
	return math.Round(v*10) / 10
}

func createPartnerHandler(store Store, logger *zap.Logger) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, _ := userIDFromContext(ctx)

		var in partnerInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validate.Struct(in); err != nil {
			writeFieldErrors(w, validationErrors(err))
			return
		}

		owner, err := store.User(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		} else if err != nil {
			logger.Error("loading partner owner", zap.Int("user_id", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not create partner")
			return
		}

		p := Partner{UserID: userID}
		in.applyTo(&p)
		fillFromProfile(&p, owner)

		if err := store.CreatePartner(ctx, &p); errors.Is(err, ErrPartnerExists) {
			writeError(w, http.StatusConflict, "you already have a partner card")
			return
		} else if err != nil {
			logger.Error("creating partner", zap.Int("user_id", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not create partner")
			return
		}
		writeData(w, http.StatusCreated, p)
	})
}

// fillFromProfile copies the owner's profile into fields the card leaves empty.
func fillFromProfile(p *Partner, owner *User) {
	if p.Name == "" {
		p.Name = owner.FullName
	}
	if p.Avatar == "" {
		p.Avatar = owner.Avatar
	}
	if p.University == nil {
		p.University = owner.University
	}
	if p.Major == nil {
		p.Major = owner.Major
	}
	if len(p.Goals) == 0 {
		p.Goals = cleanList(owner.LearningGoals)
	}
	if len(p.StudyStyle) == 0 {
		p.StudyStyle = cleanList(owner.StudyHabits)
	}
	if p.MBTIType == nil {
		p.MBTIType = owner.MBTIType
	}
	if p.Age == nil && owner.BirthDate != nil {
		age := matching.AgeAt(*owner.BirthDate, time.Now())
		p.Age = &age
	}
}

// partnerHandler serves GET, PUT and DELETE on /partners/{id}.
func partnerHandler(store Store, logger *zap.Logger) http.HandlerFunc {
	get := optionalAuth(func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPartner(w, r, store, logger)
		if !ok {
			return
		}
		owners, err := loadOwners(r.Context(), store, []Partner{*p})
		if err != nil {
			logger.Warn("loading partner owner", zap.Int("partner_id", p.ID), zap.Error(err))
		}
		writeData(w, http.StatusOK, partnerItem{Partner: *p, Owner: owners[p.UserID]})
	})

	update := authenticate(func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPartner(w, r, store, logger)
		if !ok || !canModify(w, r, store, p, logger) {
			return
		}

		var in partnerInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validate.Struct(in); err != nil {
			writeFieldErrors(w, validationErrors(err))
			return
		}
		if strings.TrimSpace(in.Name) == "" {
			in.Name = p.Name
		}
		in.applyTo(p)

		if err := store.UpdatePartner(r.Context(), p); errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "partner not found")
			return
		} else if err != nil {
			logger.Error("updating partner", zap.Int("partner_id", p.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not update partner")
			return
		}
		writeData(w, http.StatusOK, p)
	})

	remove := authenticate(func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPartner(w, r, store, logger)
		if !ok || !canModify(w, r, store, p, logger) {
			return
		}
		if err := store.DeletePartner(r.Context(), p.ID); errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "partner not found")
			return
		} else if err != nil {
			logger.Error("deleting partner", zap.Int("partner_id", p.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not delete partner")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "partner deleted"})
	})

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			get(w, r)
		case http.MethodPut:
			update(w, r)
		case http.MethodDelete:
			remove(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func loadPartner(w http.ResponseWriter, r *http.Request, store Store, logger *zap.Logger) (*Partner, bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid partner id")
		return nil, false
	}
	p, err := store.Partner(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "partner not found")
		return nil, false
	} else if err != nil {
		logger.Error("loading partner", zap.Int("partner_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load partner")
		return nil, false
	}
	return p, true
}

// canModify allows the card owner and admins.
func canModify(w http.ResponseWriter, r *http.Request, store Store, p *Partner, logger *zap.Logger) bool {
	userID, _ := userIDFromContext(r.Context())
	if userID == p.UserID {
		return true
	}
	u, err := store.User(r.Context(), userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.Error("loading caller role", zap.Int("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not verify permissions")
		return false
	}
	if u != nil && u.Role == roleAdmin {
		return true
	}
	writeError(w, http.StatusForbidden, "you can only modify your own partner card")
	return false
}

// partnersHandler dispatches the collection route.
func partnersHandler(store Store, limits PartnersConfig, logger *zap.Logger) http.HandlerFunc {
	list := listPartnersHandler(store, limits, logger)
	create := createPartnerHandler(store, logger)
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			list(w, r)
		case http.MethodPost:
			create(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}
