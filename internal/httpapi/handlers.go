package httpapi

import (
	"net/http"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/middleware"
)

type signupRequest struct {
	authsvc.SignupRequest
	CaptchaToken string `json:"captcha_token"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Username string `json:"username"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type message struct {
	Message string `json:"message"`
}

func (s *server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !s.decode(w, r, &req) {
		return
	}

	if s.captcha != nil {
		ok, err := s.captcha.Verify(r.Context(), req.CaptchaToken, authsvc.ClientIPFromContext(r.Context()))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid captcha")
			return
		}
	}

	user, err := s.engine.Signup(r.Context(), req.SignupRequest)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !s.decode(w, r, &req) {
		return
	}

	pair, err := s.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decode(w, r, &req) {
		return
	}

	pair, err := s.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.Logout(r.Context(), req.RefreshToken); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// forgotPassword answers the same way whether or not the user exists.
func (s *server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	if _, err := s.engine.ForgotPassword(r.Context(), req.Username); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Recovery email sent"})
}

func (s *server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	ok, err := s.engine.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Password reset successful"})
}

func (s *server) jwks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.KeySet())
}

func (s *server) openIDConfiguration(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.VerificationMetadata(s.baseURL))
}

func (s *server) adminHello(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		Subject string `json:"subject"`
	}{Message: "Hello, ADMIN!", Subject: claims.Subject})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
