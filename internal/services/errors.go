package services

import "errors"

// Common service errors
var (
	ErrNotFound               = errors.New("kayıt bulunamadı")
	ErrInvalidCredentials     = errors.New("e-posta veya şifre hatalı")
	ErrUnauthorized           = errors.New("yetkisiz erişim")
	ErrInvalidState           = errors.New("geçersiz durum geçişi")
	ErrDuplicate              = errors.New("kayıt zaten mevcut")
	ErrConcurrentModification = errors.New("kredi başka bir işlem tarafından güncellendi, lütfen tekrar deneyin")
	ErrValidation             = errors.New("geçersiz istek")
	ErrInactiveAccount        = errors.New("hesap aktif değil")
	ErrNoReceipt              = errors.New("ödemeye ait dekont bulunmuyor")
)
