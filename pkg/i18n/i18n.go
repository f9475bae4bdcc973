package i18n

import "strings"

var translations = map[string]string{
	"invalid request":                          "درخواست نامعتبر است",
	"failed to generate token":                 "خطا در تولید توکن",
	"failed to get user":                       "خطا در دریافت کاربر",
	"missing authorization token":              "توکن احراز هویت ارسال نشده است",
	"invalid token":                            "توکن نامعتبر است",
	"failed to validate user":                  "خطا در اعتبارسنجی کاربر",
	"user not found":                           "کاربر یافت نشد",
	"unauthorized":                             "دسترسی غیرمجاز",
	"conversation not found":                   "مکالمه یافت نشد",
	"not a participant":                        "شما عضو این مکالمه نیستید",
	"failed to fetch messages":                 "خطا در دریافت پیام ها",
	"failed to fetch conversations":            "خطا در دریافت مکالمه ها",
	"failed to create conversation":            "خطا در ایجاد مکالمه",
	"cannot start conversation with yourself":  "نمی توانید با خودتان مکالمه ایجاد کنید",
	"participant not found":                    "کاربر مقابل یافت نشد",
	"message not found":                        "پیام یافت نشد",
	"failed to send message":                   "خطا در ارسال پیام",
	"failed to update message":                 "خطا در به روزرسانی پیام",
	"can only edit own messages":               "فقط پیام های خودتان قابل ویرایش است",
	"only text messages can be edited":         "فقط پیام های متنی قابل ویرایش هستند",
	"edit window has expired":                  "مهلت ویرایش پیام به پایان رسیده است",
	"failed to mark messages as read":          "خطا در ثبت خوانده شدن پیام ها",
	"failed to update typing status":           "خطا در به روزرسانی وضعیت تایپ",
	"failed to fetch typing status":            "خطا در دریافت وضعیت تایپ",
	"failed to update presence":                "خطا در به روزرسانی وضعیت حضور",
	"failed to fetch presence":                 "خطا در دریافت وضعیت حضور",
	"failed to fetch profile":                  "خطا در دریافت پروفایل",
	"failed to update profile":                 "خطا در به روزرسانی پروفایل",
	"failed to fetch profiles":                 "خطا در دریافت پروفایل ها",
	"file is required":                         "فایل الزامی است",
	"file too large":                           "حجم فایل بیش از حد مجاز است",
	"failed to save file":                      "خطا در ذخیره فایل",
	"avatar file is required":                  "فایل آواتار الزامی است",
	"file must be an image":                    "فایل باید تصویر باشد",
	"avatar must be smaller than 2MB":          "حجم آواتار باید کمتر از ۲ مگابایت باشد",
	"failed to save avatar":                    "خطا در ذخیره آواتار",
	"failed to update avatar":                  "خطا در به روزرسانی آواتار",
	"text message requires content":            "پیام متنی باید محتوا داشته باشد",
	"file message requires an uploaded file":   "پیام فایل باید فایل بارگذاری شده داشته باشد",
	"invalid message type":                     "نوع پیام نامعتبر است",
	"websocket upgrade failed":                 "خطا در برقراری اتصال وب سوکت",
	"rate limiter error":                       "خطا در محدودسازی درخواست ها",
	"rate limit exceeded":                      "تعداد درخواست ها بیش از حد مجاز است",
	"internal server error":                    "خطای داخلی سرور",
	"not found":                                "یافت نشد",
	"username must be between 3 and 32 characters": "نام کاربری باید بین ۳ تا ۳۲ کاراکتر باشد",
	"username can only contain letters, numbers, and underscores": "نام کاربری فقط می تواند شامل حروف، اعداد و زیرخط باشد",
	"password must be at least 6 characters":                      "رمز عبور باید حداقل ۶ کاراکتر باشد",
	"username already exists":                                     "این نام کاربری قبلا ثبت شده است",
	"invalid username or password":                                "نام کاربری یا رمز عبور اشتباه است",
}

var prefixTranslations = map[string]string{
	"failed to hash password:":   "خطا در پردازش رمز عبور",
	"failed to register user:":   "خطا در ثبت نام کاربر",
	"failed to query user:":      "خطا در دریافت اطلاعات کاربر",
	"failed to generate token:":  "خطا در تولید توکن",
	"failed to sign token:":      "خطا در امضای توکن",
	"failed to parse token:":     "توکن نامعتبر است",
	"unexpected signing method:": "روش امضای توکن نامعتبر است",
}

func Translate(message string) string {
	if translated, ok := translations[message]; ok {
		return translated
	}
	for prefix, translated := range prefixTranslations {
		if strings.HasPrefix(message, prefix) {
			return translated
		}
	}
	return message
}
