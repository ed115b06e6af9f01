package service

import "fmt"

func verificationEmailTemplate(verifyURL, appName string) (string, string) {
	subject := fmt.Sprintf("Confirm your email for %s", appName)
	body := fmt.Sprintf(`Thanks for signing up to %s.

Please confirm your email address by opening this link:
%s

This link expires in 24 hours and can only be used once.

If you didn't create an account, you can safely ignore this email.

Best,
The %s Team`, appName, verifyURL, appName)

	return subject, body
}

func welcomeEmailTemplate(name, issuesURL, appName string) (string, string) {
	if name == "" {
		name = "there"
	}
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`Hi %s,

Your email is verified and your account is active.

See what your community is discussing: %s

Best,
The %s Team`, name, issuesURL, appName)

	return subject, body
}

func reportNotificationTemplate(kind, subjectLine, details, appName string) (string, string) {
	subject := fmt.Sprintf("[%s] New %s report: %s", appName, kind, subjectLine)
	body := fmt.Sprintf(`A new %s report was submitted.

%s

This message was sent automatically by %s.`, kind, details, appName)

	return subject, body
}
