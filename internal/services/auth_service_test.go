package services

import (
	"github.com/yukikurage/content-pipeline/internal/models"
)

func (suite *ServiceTestSuite) TestSignupAndLogin() {
	user, err := suite.auth.Signup(SignupInput{Username: " newbie ", Password: "password123"})
	suite.Require().NoError(err)
	suite.Equal("newbie", user.Username)
	suite.Equal(models.RoleMember, user.Role)
	suite.NotEqual("password123", user.PasswordHash)

	_, err = suite.auth.Signup(SignupInput{Username: "newbie", Password: "password123"})
	suite.ErrorIs(err, ErrUsernameTaken)

	_, err = suite.auth.Signup(SignupInput{Username: "short", Password: "123"})
	suite.ErrorIs(err, ErrPasswordTooShort)

	_, err = suite.auth.Signup(SignupInput{Username: "  ", Password: "password123"})
	suite.ErrorIs(err, ErrUsernameRequired)

	loggedIn, err := suite.auth.Login(LoginInput{Username: "newbie", Password: "password123"})
	suite.Require().NoError(err)
	suite.Equal(user.ID, loggedIn.ID)

	_, err = suite.auth.Login(LoginInput{Username: "newbie", Password: "wrong-password"})
	suite.ErrorIs(err, ErrInvalidCredentials)

	_, err = suite.auth.Login(LoginInput{Username: "nobody", Password: "password123"})
	suite.ErrorIs(err, ErrInvalidCredentials)

	found, err := suite.auth.GetUser(user.ID)
	suite.Require().NoError(err)
	suite.Equal("newbie", found.Username)

	_, err = suite.auth.GetUser("missing")
	suite.ErrorIs(err, ErrUserNotFound)
}

func (suite *ServiceTestSuite) TestSignup_FirstUserBecomesOwner() {
	suite.Require().NoError(suite.db.Where("1 = 1").Delete(&models.User{}).Error)

	first, err := suite.auth.Signup(SignupInput{Username: "founder", Password: "password123"})
	suite.Require().NoError(err)
	suite.Equal(models.RoleOwner, first.Role)

	second, err := suite.auth.Signup(SignupInput{Username: "hire", Password: "password123"})
	suite.Require().NoError(err)
	suite.Equal(models.RoleMember, second.Role)
}

func (suite *ServiceTestSuite) TestSetRole() {
	promoted, err := suite.auth.SetRole(suite.owner, suite.editor.ID, models.RoleManager)
	suite.Require().NoError(err)
	suite.Equal(models.RoleManager, promoted.Role)

	_, err = suite.auth.SetRole(suite.manager, suite.editor.ID, models.RoleOwner)
	suite.ErrorIs(err, ErrRoleChangeForbidden)

	_, err = suite.auth.SetRole(suite.owner, suite.editor.ID, "admin")
	suite.ErrorIs(err, ErrInvalidRole)

	_, err = suite.auth.SetRole(suite.owner, "missing", models.RoleMember)
	suite.ErrorIs(err, ErrUserNotFound)
}
