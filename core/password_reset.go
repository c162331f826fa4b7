package core

import (
	"context"
	"strings"
	"time"
)

// RequestPasswordReset opens a reset window for the person behind an
// email address. The returned token is what gets mailed out; it is the
// only handle to the request.
func (s *Service) RequestPasswordReset(ctx context.Context, in RequestPasswordResetInput) (request PasswordResetRequest, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "request_password_reset", err, fields)
	}()

	email := strings.TrimSpace(in.Email)
	if email == "" {
		err = s.mapError(badRequestError("email is required"))
		return PasswordResetRequest{}, err
	}

	person, err := s.personStore.FindByEmail(ctx, email)
	if err != nil {
		if isNotFoundError(err) {
			err = s.mapError(conflictError("Unrecognized email address"))
			return PasswordResetRequest{}, err
		}
		err = s.mapError(err)
		return PasswordResetRequest{}, err
	}
	fields["person_id"] = person.ID

	token, err := newOpaqueToken(32)
	if err != nil {
		err = s.mapError(err)
		return PasswordResetRequest{}, err
	}

	request, err = s.passwordResetStore.CreateRequest(ctx, CreatePasswordResetInput{
		PersonID:  person.ID,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.config.PasswordResetTTL()),
	})
	if err != nil {
		err = s.mapError(err)
		return PasswordResetRequest{}, err
	}
	return request, nil
}

// VerifyPasswordReset checks that a reset token is known, unexpired,
// and unused. It is the pre-flight for rendering a reset form.
func (s *Service) VerifyPasswordReset(ctx context.Context, token string) (request PasswordResetRequest, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "verify_password_reset", err, fields)
	}()

	request, err = s.loadResetRequest(ctx, token)
	if err != nil {
		err = s.mapError(err)
		return PasswordResetRequest{}, err
	}
	fields["person_id"] = request.PersonID
	return request, nil
}

// CompletePasswordReset consumes the token and writes the new password
// hash. The hash update and the completion record land in the same
// transaction so a token can never be replayed after a crash between
// the two.
func (s *Service) CompletePasswordReset(ctx context.Context, req CompletePasswordResetRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "complete_password_reset", err, fields)
	}()

	if req.Password == "" {
		err = s.mapError(badRequestError("password is required"))
		return err
	}
	if req.Password != req.ConfirmPassword {
		err = s.mapError(conflictError("The confirmed password does not match."))
		return err
	}

	request, err := s.loadResetRequest(ctx, req.Token)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	fields["person_id"] = request.PersonID

	passwordHash, err := s.passwordHasher.Hash(req.Password)
	if err != nil {
		err = s.mapError(err)
		return err
	}

	err = s.passwordResetStore.Complete(ctx, CompletePasswordResetInput{
		RequestID:    request.ID,
		PersonID:     request.PersonID,
		PasswordHash: passwordHash,
		RemoteIP:     req.RemoteIP,
	})
	if err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) loadResetRequest(ctx context.Context, token string) (PasswordResetRequest, error) {
	if strings.TrimSpace(token) == "" {
		return PasswordResetRequest{}, conflictError("Could not reset password")
	}
	request, err := s.passwordResetStore.GetRequestByToken(ctx, token)
	if err != nil {
		if isNotFoundError(err) {
			return PasswordResetRequest{}, conflictError("Could not reset password")
		}
		return PasswordResetRequest{}, err
	}
	if request.Expired(time.Now().UTC()) {
		return PasswordResetRequest{}, conflictError("The password reset link has expired")
	}
	completed, err := s.passwordResetStore.Completed(ctx, request.ID)
	if err != nil {
		return PasswordResetRequest{}, err
	}
	if completed {
		return PasswordResetRequest{}, conflictError("This reset link has already been used")
	}
	return request, nil
}
