package easy

import "github.com/miekg/pkcs11"

// namedFlag binds a display name to its CKF_* bit for one flag category.
type namedFlag struct {
	name string
	bit  uint
}

var tokenFlagNames = []namedFlag{
	{"rng", pkcs11.CKF_RNG},
	{"write_protected", pkcs11.CKF_WRITE_PROTECTED},
	{"login_required", pkcs11.CKF_LOGIN_REQUIRED},
	{"user_pin_initialized", pkcs11.CKF_USER_PIN_INITIALIZED},
	{"restore_key_not_needed", pkcs11.CKF_RESTORE_KEY_NOT_NEEDED},
	{"clock_on_token", pkcs11.CKF_CLOCK_ON_TOKEN},
	{"protected_authentication_path", pkcs11.CKF_PROTECTED_AUTHENTICATION_PATH},
	{"dual_crypto_operations", pkcs11.CKF_DUAL_CRYPTO_OPERATIONS},
	{"token_initialized", pkcs11.CKF_TOKEN_INITIALIZED},
	{"secondary_authentication", pkcs11.CKF_SECONDARY_AUTHENTICATION},
	{"user_pin_count_low", pkcs11.CKF_USER_PIN_COUNT_LOW},
	{"user_pin_final_try", pkcs11.CKF_USER_PIN_FINAL_TRY},
	{"user_pin_locked", pkcs11.CKF_USER_PIN_LOCKED},
	{"so_pin_count_low", pkcs11.CKF_SO_PIN_COUNT_LOW},
	{"user_pin_to_be_changed", pkcs11.CKF_USER_PIN_TO_BE_CHANGED},
	{"so_pin_final_try", pkcs11.CKF_SO_PIN_FINAL_TRY},
	{"so_pin_locked", pkcs11.CKF_SO_PIN_LOCKED},
	{"so_pin_to_be_changed", pkcs11.CKF_SO_PIN_TO_BE_CHANGED},
	{"error_state", pkcs11.CKF_ERROR_STATE},
}

var mechanismFlagNames = []namedFlag{
	{"hw", pkcs11.CKF_HW},
	{"encrypt", pkcs11.CKF_ENCRYPT},
	{"decrypt", pkcs11.CKF_DECRYPT},
	{"digest", pkcs11.CKF_DIGEST},
	{"sign", pkcs11.CKF_SIGN},
	{"sign_recover", pkcs11.CKF_SIGN_RECOVER},
	{"verify", pkcs11.CKF_VERIFY},
	{"verify_recover", pkcs11.CKF_VERIFY_RECOVER},
	{"generate", pkcs11.CKF_GENERATE},
	{"generate_key_pair", pkcs11.CKF_GENERATE_KEY_PAIR},
	{"wrap", pkcs11.CKF_WRAP},
	{"unwrap", pkcs11.CKF_UNWRAP},
	{"derive", pkcs11.CKF_DERIVE},
	{"extension", pkcs11.CKF_EXTENSION},
}

var slotFlagNames = []namedFlag{
	{"token_present", pkcs11.CKF_TOKEN_PRESENT},
	{"removable_device", pkcs11.CKF_REMOVABLE_DEVICE},
	{"hw_slot", pkcs11.CKF_HW_SLOT},
}

// decodeFlags drops bits that are not in the category table; every
// enumerated name is always present in the result.
func decodeFlags(flags uint, names []namedFlag) map[string]bool {
	res := make(map[string]bool, len(names))
	for _, f := range names {
		res[f.name] = flags&f.bit != 0
	}
	return res
}

// TokenFlags maps a CK_TOKEN_INFO flags bitmask into named booleans.
func TokenFlags(flags uint) map[string]bool {
	return decodeFlags(flags, tokenFlagNames)
}

// MechanismFlags maps a CK_MECHANISM_INFO flags bitmask into named booleans.
func MechanismFlags(flags uint) map[string]bool {
	return decodeFlags(flags, mechanismFlagNames)
}

// SlotFlags maps a CK_SLOT_INFO flags bitmask into named booleans.
func SlotFlags(flags uint) map[string]bool {
	return decodeFlags(flags, slotFlagNames)
}
