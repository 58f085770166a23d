package user

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/collegepense/pense/core"
	appfs "github.com/collegepense/pense/fs"
)

const (
	passwordMinLen     = 8
	passwordSimilarity = .7
	commonPasswordsGz  = "assets/common-passwords.txt.gz"
)

// passwordRule is one clause of the professor account password policy.
// broken reports whether pwd violates it; profile holds the account's name & email, lowercased.
type passwordRule struct {
	tag    string
	text   string
	broken func(pwd []rune, lower string, profile []string) bool
}

var passwordPolicy = []passwordRule{
	{
		tag:  "pwdlen",
		text: fmt.Sprintf("a professor password needs at least %d characters", passwordMinLen),
		broken: func(pwd []rune, _ string, _ []string) bool {
			return len(pwd) < passwordMinLen
		},
	},
	{
		tag:  "pwdspace",
		text: "a professor password cannot contain spaces",
		broken: func(pwd []rune, _ string, _ []string) bool {
			return countRunes(pwd, unicode.IsSpace) > 0
		},
	},
	{
		tag:  "pwddigits",
		text: "a professor password cannot be only digits",
		broken: func(pwd []rune, _ string, _ []string) bool {
			return countRunes(pwd, unicode.IsDigit) == len(pwd)
		},
	},
	{
		tag:  "pwdmix",
		text: "a professor password mixes upper & lower case letters, digits and symbols",
		broken: func(pwd []rune, _ string, _ []string) bool {
			symbol := func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }
			for _, class := range []func(rune) bool{unicode.IsUpper, unicode.IsLower, unicode.IsDigit, symbol} {
				if countRunes(pwd, class) == 0 {
					return true
				}
			}
			return false
		},
	},
	{
		tag:  "pwdprofile",
		text: "a professor password cannot resemble the professor's name or email",
		broken: func(_ []rune, lower string, profile []string) bool {
			for _, attr := range profile {
				if attr == "" {
					continue
				}
				m := difflib.NewMatcher(strings.Split(lower, ""), strings.Split(attr, ""))
				if m.QuickRatio() >= passwordSimilarity {
					return true
				}
			}
			return false
		},
	},
	{
		tag:  "pwdcommon",
		text: "this password is on the list of commonly used passwords",
		broken: func(_ []rune, lower string, _ []string) bool {
			return commonPasswords().has(lower)
		},
	},
}

func countRunes(pwd []rune, class func(rune) bool) int {
	n := 0
	for _, r := range pwd {
		if class(r) {
			n++
		}
	}
	return n
}

// RegisterValidators registers the password policy on validate.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(passwordStructValidation, NewUser{}, ResetUserPassword{}, SetUserPassword{})
	for _, rule := range passwordPolicy {
		core.RegisterCustomTranslation(validate, translator, rule.tag, rule.text)
	}
}

// passwordStructValidation checks the password of every struct that sets one, against the profile
// of the account it belongs to when known.
func passwordStructValidation(sl validator.StructLevel) {
	switch v := sl.Current().Interface().(type) {
	case NewUser:
		checkPassword(sl, v.Password, v.Name, v.Email)
	case SetUserPassword:
		checkPassword(sl, v.Password, v.Email)
	case ResetUserPassword:
		checkPassword(sl, v.Password)
	}
}

// checkPassword reports the first rule pwd breaks. An empty password is left to `required`.
func checkPassword(sl validator.StructLevel, pwd string, profile ...string) {
	if pwd == "" {
		return
	}
	lower := strings.ToLower(pwd)
	attrs := make([]string, 0, len(profile)+1)
	for _, attr := range profile {
		attr = strings.ToLower(attr)
		attrs = append(attrs, attr)
		if at := strings.IndexByte(attr, '@'); at > 0 {
			attrs = append(attrs, attr[:at]) // mailbox alone
		}
	}

	runes := []rune(pwd)
	for _, rule := range passwordPolicy {
		if rule.broken(runes, lower, attrs) {
			sl.ReportError(pwd, "password", "Password", rule.tag, "")
			return
		}
	}
}

// wordList is a sorted list of lowercased passwords.
type wordList []string

func (l wordList) has(word string) bool {
	i := sort.SearchStrings(l, word)
	return i < len(l) && l[i] == word
}

var (
	commonOnce sync.Once
	common     wordList
)

// commonPasswords lazily loads the gzipped list shipped in the binary. A missing list disables the rule.
func commonPasswords() wordList {
	commonOnce.Do(func() {
		f, err := appfs.FS.Open(commonPasswordsGz)
		if err != nil {
			return
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return
		}
		sc := bufio.NewScanner(gz)
		for sc.Scan() {
			if w := strings.TrimSpace(sc.Text()); w != "" {
				common = append(common, strings.ToLower(w))
			}
		}
		sort.Strings(common)
	})
	return common
}
