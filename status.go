package auth

// UnknownStatusMessage is reported for statuses outside the known set.
const UnknownStatusMessage = "Неизвестный статус."

var statusMessages = map[UserStatus]string{
	UserStatusPending:  "Ваш аккаунт ожидает подтверждения администратором.",
	UserStatusActive:   "Ваш аккаунт активен.",
	UserStatusRejected: "Ваш аккаунт был отклонен администратором.",
	UserStatusBlocked:  "Ваш аккаунт заблокирован.",
}

// StatusMessage returns the human readable explanation of an account status.
func StatusMessage(status UserStatus) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return UnknownStatusMessage
}

// ensureActive rejects every status other than active with the
// status specific message.
func ensureActive(user *User) error {
	if user == nil {
		return unauthenticatedError(msgUserNotFound, ErrNotFound)
	}
	if user.Status == UserStatusActive {
		return nil
	}
	return forbiddenError(StatusMessage(user.Status)).
		WithMetadata(map[string]any{
			"status": user.Status,
		})
}
