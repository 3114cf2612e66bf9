package tempdomain

// DefaultSources are public, regularly maintained disposable-domain lists.
var DefaultSources = []string{
	"https://raw.githubusercontent.com/disposable-email-domains/disposable-email-domains/main/disposable_email_blocklist.conf",
	"https://raw.githubusercontent.com/disposable/disposable-email-domains/master/domains.txt",
	"https://raw.githubusercontent.com/wesbos/burner-email-providers/master/emails.txt",
}

// DefaultDomains returns a fresh copy of the built-in disposable-domain list.
func DefaultDomains() []string {
	out := make([]string, len(builtinDomains))
	copy(out, builtinDomains)
	return out
}

var builtinDomains = []string{
	"10minutemail.com",
	"10minutemail.net",
	"10minutemail.co.uk",
	"20minutemail.com",
	"33mail.com",
	"anonbox.net",
	"anonymbox.com",
	"armyspy.com",
	"burnermail.io",
	"byom.de",
	"cuvox.de",
	"dayrep.com",
	"deadaddress.com",
	"discard.email",
	"discardmail.com",
	"dispostable.com",
	"dodgeit.com",
	"dropmail.me",
	"einrot.com",
	"emailondeck.com",
	"emailfake.com",
	"fakeinbox.com",
	"fakemail.net",
	"fleckens.hu",
	"getairmail.com",
	"getnada.com",
	"gishpuppy.com",
	"grr.la",
	"guerrillamail.biz",
	"guerrillamail.com",
	"guerrillamail.de",
	"guerrillamail.info",
	"guerrillamail.net",
	"guerrillamail.org",
	"guerrillamailblock.com",
	"gustr.com",
	"harakirimail.com",
	"incognitomail.org",
	"inboxbear.com",
	"jetable.org",
	"jourrapide.com",
	"kasmail.com",
	"mail-temp.com",
	"mailcatch.com",
	"maildrop.cc",
	"mailexpire.com",
	"mailforspam.com",
	"mailinator.com",
	"mailinator.net",
	"mailinator2.com",
	"mailnesia.com",
	"mailnull.com",
	"mailsac.com",
	"mailtemp.info",
	"mintemail.com",
	"moakt.com",
	"mohmal.com",
	"mytemp.email",
	"mytrashmail.com",
	"nada.email",
	"no-spam.ws",
	"nowmymail.com",
	"pokemail.net",
	"rhyta.com",
	"sharklasers.com",
	"shieldedmail.com",
	"spam4.me",
	"spambog.com",
	"spambox.us",
	"spamgourmet.com",
	"spamex.com",
	"spamfree24.org",
	"spamherelots.com",
	"spaml.de",
	"superrito.com",
	"teleworm.us",
	"temp-mail.io",
	"temp-mail.org",
	"tempail.com",
	"tempinbox.com",
	"tempmail.com",
	"tempmail.net",
	"tempmail.plus",
	"tempmailaddress.com",
	"tempmailo.com",
	"tempr.email",
	"temporaryemail.net",
	"temporaryinbox.com",
	"thankyou2010.com",
	"throwam.com",
	"throwawaymail.com",
	"tmail.ws",
	"tmpmail.net",
	"tmpmail.org",
	"trash-mail.com",
	"trashmail.com",
	"trashmail.de",
	"trashmail.net",
	"trbvm.com",
	"wegwerfmail.de",
	"wegwerfmail.net",
	"yopmail.com",
	"yopmail.fr",
	"yopmail.net",
	"zetmail.com",
}
