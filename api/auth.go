package api

import (
	"errors"
	"net/http"
	"strings"

	"moneytrack/config"
	"moneytrack/database"
	"moneytrack/logger"
	"moneytrack/media"
	"moneytrack/middleware"
	"moneytrack/models"
	"moneytrack/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	cfg          *config.Config
	emailService *service.EmailService
	sessions     StoreProvider
	uploader     media.Uploader
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, sessions StoreProvider, uploader media.Uploader) *AuthHandler {
	return &AuthHandler{
		cfg:          cfg,
		emailService: service.NewEmailService(&cfg.Email),
		sessions:     sessions,
		uploader:     uploader,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=50" example:"Asha"`
	Email    string `json:"email" binding:"required,email" example:"asha@example.com"`
	Password string `json:"password" binding:"required,min=6,max=50" example:"password123"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"asha@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token    string      `json:"token"`
	UserInfo models.User `json:"user_info"`
}

// UpdateProfileRequest 修改资料请求
type UpdateProfileRequest struct {
	Name  string `json:"name" binding:"required,max=50" example:"Asha"`
	Email string `json:"email" binding:"required,email" example:"asha@example.com"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required" example:"oldpassword123"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=50" example:"newpassword123"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 用户注册
// @Summary 用户注册
// @Description 创建账号并直接登录，邮箱不可重复
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "注册信息"
// @Success 200 {object} Response{data=LoginResponse} "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "邮箱已被注册"
// @Failure 500 {object} Response "服务器错误"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	// 检查邮箱是否已存在
	var existing models.User
	err := database.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		Conflict(c, "邮箱已被注册")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		InternalError(c, SafeErrorMessage(err, "注册失败"))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "密码加密失败")
		return
	}

	user := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPassword),
	}
	if err := database.DB.Create(&user).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建用户失败"))
		return
	}

	if h.emailService.Enabled() {
		go func(email, name string) {
			if err := h.emailService.SendWelcomeEmail(email, name); err != nil {
				clog := logger.Component(logger.ComponentEmail)
				clog.Warn().Err(err).Msg("welcome email not sent")
			}
		}(user.Email, user.Name)
	}

	token, err := middleware.GenerateToken(user.ID, user.Email, h.cfg.JWT.ExpireTime)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}
	SuccessWithMessage(c, "注册成功", LoginResponse{Token: token, UserInfo: user})
}

// Login 用户登录
// @Summary 用户登录
// @Description 邮箱密码登录获取 JWT token；邮箱或密码错误时统一返回 401
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} Response{data=LoginResponse} "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "邮箱或密码错误"
// @Failure 429 {object} Response "登录尝试过于频繁"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		Unauthorized(c, "邮箱或密码错误")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		Unauthorized(c, "邮箱或密码错误")
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Email, h.cfg.JWT.ExpireTime)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}
	Success(c, LoginResponse{Token: token, UserInfo: user})
}

// Logout 退出登录
// @Summary 退出登录
// @Description 注销当前 token，关闭该用户的账本会话及所有实时订阅
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "已退出"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	middleware.RevokeToken(middleware.GetCurrentClaims(c))
	h.sessions.Release(userID)
	SuccessWithMessage(c, "已退出登录", nil)
}

// GetProfile 获取用户信息
// @Summary 获取当前用户信息
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=models.User} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/auth/profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		NotFound(c, "用户不存在")
		return
	}
	Success(c, user)
}

// UpdateProfile 修改资料
// @Summary 修改显示名称与邮箱
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "资料"
// @Success 200 {object} Response{data=models.User} "修改成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "邮箱已被使用"
// @Router /api/v1/auth/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	req.Email = normalizeEmail(req.Email)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		NotFound(c, "用户不存在")
		return
	}

	if req.Email != user.Email {
		var count int64
		if err := database.DB.Model(&models.User{}).Where("email = ? AND id <> ?", req.Email, userID).Count(&count).Error; err != nil {
			InternalError(c, SafeErrorMessage(err, "修改失败"))
			return
		}
		if count > 0 {
			Conflict(c, "邮箱已被使用")
			return
		}
	}

	updates := map[string]interface{}{
		"name":  strings.TrimSpace(req.Name),
		"email": req.Email,
	}
	if err := database.DB.Model(&user).Updates(updates).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "修改失败"))
		return
	}
	SuccessWithMessage(c, "修改成功", user)
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "密码信息"
// @Success 200 {object} Response "修改成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "原密码错误"
// @Router /api/v1/auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		NotFound(c, "用户不存在")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		Unauthorized(c, "原密码错误")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "密码加密失败")
		return
	}

	if err := database.DB.Model(&user).Update("password", string(hashedPassword)).Error; err != nil {
		InternalError(c, "更新密码失败")
		return
	}

	SuccessWithMessage(c, "密码修改成功", nil)
}

// UploadAvatar 上传头像
// @Summary 上传头像
// @Description multipart 表单字段 avatar，支持 png/jpeg/gif/webp
// @Tags 认证
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "头像图片"
// @Success 200 {object} Response{data=models.User} "上传成功"
// @Failure 400 {object} Response "文件无效"
// @Failure 413 {object} Response "文件过大"
// @Router /api/v1/auth/avatar [post]
func (h *AuthHandler) UploadAvatar(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	fh, err := c.FormFile("avatar")
	if err != nil {
		BadRequest(c, "请选择头像文件")
		return
	}
	f, err := fh.Open()
	if err != nil {
		BadRequest(c, "读取文件失败")
		return
	}
	defer f.Close()

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		NotFound(c, "用户不存在")
		return
	}

	url, err := h.uploader.Upload(c.Request.Context(), f)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		Error(c, http.StatusRequestEntityTooLarge, "文件过大")
		return
	case errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrEmpty):
		BadRequest(c, "仅支持 png、jpeg、gif、webp 图片")
		return
	case err != nil:
		InternalError(c, SafeErrorMessage(err, "上传失败"))
		return
	}

	if err := database.DB.Model(&user).Update("avatar_url", url).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "保存头像失败"))
		return
	}
	SuccessWithMessage(c, "上传成功", user)
}
