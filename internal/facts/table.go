package facts

import "github.com/tiroq/athar/internal/i18n"

var table = map[i18n.Language][]string{
	i18n.AR: {
		"حجر رشيد كان المفتاح لفك رموز الهيروغليفية عام 1822.",
		"الكتابة المسمارية هي أقدم نظام كتابة في العالم، بدأت في سومر.",
		"خط التيفيناغ الأمازيغي يعود لآلاف السنين وهو أحد أقدم الأبجديات.",
		"المصريون القدماء استخدموا أكثر من 700 رمز هيروغليفي.",
		"نقش نقش رستم في إيران يروي انتصارات الساسانيين بلغات متعددة.",
		"الأبجدية الفينيقية هي الأصل لمعظم الأبجديات المعاصرة.",
		"مخطوطات البحر الميت هي أقدم النسخ المكتشفة من نصوص توراتية.",
		"مسلة حمورابي تحتوي على واحدة من أقدم مجموعات القوانين في التاريخ.",
		"الخط الكوفي هو أحد أقدم أشكال الخط العربي وتطور في العراق.",
		"نقوش البتراء النبطية تُظهر تطوراً لغوياً فريداً بين الآرامية والعربية.",
		"حجر باليرمو يسجل أحداث الأسرات المصرية الأولى بدقة مذهلة.",
		"لوح الشكوى إلى إيا-ناصر هو أقدم شكوى عملاء مسجلة في التاريخ.",
		"نقش تيما في السعودية يعكس الروابط التجارية القديمة.",
		"أقدم استخدام للصفر كرقم سُجل في الهند القديمة.",
		"الهيروغليفية تطورت عبر آلاف السنين ولم تكن ثابتة.",
	},
	i18n.EN: {
		"The Rosetta Stone was the key to deciphering Hieroglyphs in 1822.",
		"Cuneiform is the world's oldest writing system, originating in Sumer.",
		"Tifinagh script dates back millennia and is still used today.",
		"Ancient Egyptians used over 700 hieroglyphic signs.",
		"The Behistun Inscription is the Rosetta Stone of Cuneiform.",
		"The Phoenician alphabet is the mother of most modern alphabets.",
		"The Dead Sea Scrolls contain some of the oldest known biblical texts.",
		"Hammurabi's Code is one of the oldest deciphered writings.",
		"Kufic is the oldest calligraphic form of various Arabic scripts.",
		"The Epic of Gilgamesh is the oldest surviving work of literature.",
		"The Cyrus Cylinder is considered the first charter of human rights.",
		"Linear B revealed an early form of Greek in 1952.",
		"Maya script was the only fully developed writing system of Pre-Columbian Americas.",
		"The Complaint Tablet to Ea-nasir is the oldest known customer complaint.",
		"Ancient Indus Valley script remains a great unsolved mystery.",
	},
	i18n.FR: {
		"La pierre de Rosette a permis de déchiffrer les hiéroglyphes en 1822.",
		"Le cunéiforme est le plus ancien système d'écriture au monde.",
		"L'écriture amazighe Tifinagh remonte à des millénaires.",
		"Les anciens Égyptiens utilisaient plus de 700 signes hiéroglyphiques.",
		"L'inscription de Behistun est la pierre de Rosette du cunéiforme.",
		"L'alphabet phénicien est l'ancêtre des alphabets modernes.",
		"Les manuscrits de la mer Morte sont les plus anciens textes bibliques.",
		"Le Code de Hammurabi est l'un des plus anciens recueils de lois.",
		"Le Kufi est la plus ancienne forme calligraphique de l'arabe.",
		"L'Épopée de Gilgamesh est la plus ancienne œuvre littéraire connue.",
		"Le Cylindre de Cyrus est la première charte des droits de l'homme.",
		"Le Linéaire B a révélé une forme archaïque de grec en 1952.",
		"L'écriture maya était le seul système complet d'Amérique précolombienne.",
		"La tablette d'Ea-nasir est la plus ancienne plainte écrite connue.",
		"L'écriture de l'Indus reste l'un des grands mystères non résolus.",
	},
}
