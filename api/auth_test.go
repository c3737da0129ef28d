package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"moneytrack/config"
	"moneytrack/database"
	"moneytrack/media"
	"moneytrack/middleware"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	oldDB := database.DB
	database.DB = gormDB
	return mock, func() {
		database.DB = oldDB
		sqlDB.Close()
	}
}

var userColumns = []string{"id", "name", "email", "password", "avatar_url", "created_at", "updated_at"}

func testAuthConfig() *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "debug"},
		JWT:    config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Media:  config.MediaConfig{URLPrefix: "/uploads", MaxBytes: 1 << 20},
	}
	config.GlobalConfig = cfg
	middleware.InitJWT(cfg)
	return cfg
}

func newTestAuthHandler(cfg *config.Config, sessions StoreProvider) *AuthHandler {
	uploader := media.NewLocalUploader(afero.NewMemMapFs(), "", cfg.Media)
	return NewAuthHandler(cfg, sessions, uploader)
}

func TestAuthHandler_Register(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	// 检查邮箱不存在：SELECT 返回无记录
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("asha@example.com").
		WillReturnRows(sqlmock.NewRows([]string{}))

	// GORM Create 使用事务
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `users`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/register", newTestAuthHandler(cfg, newTestSessions(newMemRepo())).Register)

	body := `{"name":"Asha","email":" Asha@Example.com ","password":"password123"}`
	w, resp := doJSON(t, router, "POST", "/register", body)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, float64(200), resp["code"])
	assert.Equal(t, "注册成功", resp["message"])
	data := resp["data"].(map[string]interface{})
	assert.NotEmpty(t, data["token"])
	user := data["user_info"].(map[string]interface{})
	assert.Equal(t, "asha@example.com", user["email"])
	assert.NotContains(t, user, "password")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Register_EmailExists(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("asha@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "Asha", "asha@example.com", "hash", "", time.Now(), time.Now()))

	router := gin.New()
	router.POST("/register", newTestAuthHandler(cfg, newTestSessions(newMemRepo())).Register)

	body := `{"name":"Asha","email":"asha@example.com","password":"password123"}`
	w, resp := doJSON(t, router, "POST", "/register", body)

	assert.Equal(t, 409, w.Code)
	assert.Equal(t, "邮箱已被注册", resp["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Register_InvalidBody(t *testing.T) {
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	router := gin.New()
	router.POST("/register", newTestAuthHandler(cfg, newTestSessions(newMemRepo())).Register)

	w, _ := doJSON(t, router, "POST", "/register", `{"name":"Asha","email":"not-an-email","password":"123"}`)
	assert.Equal(t, 400, w.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("asha@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "Asha", "asha@example.com", string(hashed), "", time.Now(), time.Now()))

	router := gin.New()
	router.POST("/login", newTestAuthHandler(cfg, newTestSessions(newMemRepo())).Login)

	w, resp := doJSON(t, router, "POST", "/login", `{"email":"asha@example.com","password":"password123"}`)

	assert.Equal(t, 200, w.Code)
	data := resp["data"].(map[string]interface{})
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	claims, err := middleware.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(1), claims.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("asha@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "Asha", "asha@example.com", string(hashed), "", time.Now(), time.Now()))

	router := gin.New()
	router.POST("/login", newTestAuthHandler(cfg, newTestSessions(newMemRepo())).Login)

	w, resp := doJSON(t, router, "POST", "/login", `{"email":"asha@example.com","password":"wrong"}`)
	assert.Equal(t, 401, w.Code)
	assert.Equal(t, "邮箱或密码错误", resp["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Login_UserNotFound(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{}))

	router := gin.New()
	router.POST("/login", newTestAuthHandler(cfg, newTestSessions(newMemRepo())).Login)

	w, resp := doJSON(t, router, "POST", "/login", `{"email":"nobody@example.com","password":"any"}`)
	assert.Equal(t, 401, w.Code)
	assert.Equal(t, "邮箱或密码错误", resp["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_Logout(t *testing.T) {
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	sessions := newTestSessions(newMemRepo())
	store, err := sessions.Acquire(context.Background(), 1)
	require.NoError(t, err)
	sub := store.Subscribe()

	token, err := middleware.GenerateToken(1, "asha@example.com", time.Hour)
	require.NoError(t, err)

	router := gin.New()
	authorized := router.Group("", middleware.JWTAuth())
	authorized.POST("/logout", newTestAuthHandler(cfg, sessions).Logout)

	req := httptest.NewRequest("POST", "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.False(t, sessions.Active(1))
	assert.True(t, store.Closed())

	// 订阅通道在登出后关闭
	<-sub.C
	_, open := <-sub.C
	assert.False(t, open)

	// 同一 token 不能再使用
	_, err = middleware.ParseToken(token)
	assert.ErrorIs(t, err, middleware.ErrTokenRevoked)
}

func TestAuthHandler_GetProfile(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "Asha", "asha@example.com", "hash", "/uploads/a.png", time.Now(), time.Now()))

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.GET("/profile", newTestAuthHandler(cfg, newTestSessions(newMemRepo())).GetProfile)

	w, resp := doJSON(t, router, "GET", "/profile", "")
	assert.Equal(t, 200, w.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Asha", data["name"])
	assert.Equal(t, "/uploads/a.png", data["avatar_url"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_UpdateProfile_EmailTaken(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "Asha", "asha@example.com", "hash", "", time.Now(), time.Now()))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WithArgs("taken@example.com", 1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.PUT("/profile", newTestAuthHandler(cfg, newTestSessions(newMemRepo())).UpdateProfile)

	w, resp := doJSON(t, router, "PUT", "/profile", `{"name":"Asha","email":"taken@example.com"}`)
	assert.Equal(t, 409, w.Code)
	assert.Equal(t, "邮箱已被使用", resp["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_ChangePassword_WrongOldPassword(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "Asha", "asha@example.com", string(hashed), "", time.Now(), time.Now()))

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.PUT("/password", newTestAuthHandler(cfg, newTestSessions(newMemRepo())).ChangePassword)

	w, resp := doJSON(t, router, "PUT", "/password", `{"old_password":"nope","new_password":"newpassword123"}`)
	assert.Equal(t, 401, w.Code)
	assert.Equal(t, "原密码错误", resp["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

// 最小的 1x1 PNG
var avatarPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

func newAvatarRequest(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestAuthHandler_UploadAvatar(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "Asha", "asha@example.com", "hash", "", time.Now(), time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `users` SET `avatar_url`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.POST("/avatar", newTestAuthHandler(cfg, newTestSessions(newMemRepo())).UploadAvatar)

	body, contentType := newAvatarRequest(t, avatarPNG)
	req := httptest.NewRequest("POST", "/avatar", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "上传成功", resp["message"])
	avatar := resp["data"].(map[string]interface{})["avatar_url"].(string)
	assert.Regexp(t, `^/uploads/[0-9a-f-]+\.png$`, avatar)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_UploadAvatar_Unsupported(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	cfg := testAuthConfig()
	defer func() { config.GlobalConfig = nil }()

	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(1, "Asha", "asha@example.com", "hash", "", time.Now(), time.Now()))

	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.POST("/avatar", newTestAuthHandler(cfg, newTestSessions(newMemRepo())).UploadAvatar)

	body, contentType := newAvatarRequest(t, []byte("just some text, not an image"))
	req := httptest.NewRequest("POST", "/avatar", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
