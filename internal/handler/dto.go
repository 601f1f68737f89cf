package handler

import (
	"time"

	"github.com/sakif/reportnavi/internal/model"
)

// userResponse is the public view of an account. The password hash never
// leaves the server.
type userResponse struct {
	Username    string     `json:"username"`
	Role        model.Role `json:"role"`
	Points      int        `json:"points"`
	MemberSince time.Time  `json:"memberSince"`
	ProfilePic  *string    `json:"profilePic,omitempty"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		Username:    u.Username,
		Role:        u.Role,
		Points:      u.Points(),
		MemberSince: u.MemberSince,
		ProfilePic:  u.ProfilePic,
	}
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	AdminCode string `json:"adminCode"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type avatarRequest struct {
	ProfilePic string `json:"profilePic"`
}

type submitRequest struct {
	Category    string             `json:"category"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Location    string             `json:"location"`
	Files       []model.ReportFile `json:"files"`
	Thumbnail   string             `json:"thumbnail"`
}

type transitionRequest struct {
	Status model.Status `json:"status"`
}
