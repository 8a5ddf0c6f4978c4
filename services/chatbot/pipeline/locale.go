// Copyright (C) 2025 AVS Institute (support@avs.ma)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"github.com/SHAHINE00/avswebsitedemo-sub002/services/chatbot/datatypes"
)

// Localized string tables. Every table must cover all four roles and all
// three languages; a missing pair is a programming error and the prompt
// builder panics on it rather than silently defaulting. prompt_test checks
// completeness.

// personas maps (role, language) to the assistant's mission sentence.
var personas = map[datatypes.UserRole]map[datatypes.Language]string{
	datatypes.RoleVisitor: {
		datatypes.LanguageFrench:  "Tu es l'assistant virtuel d'AVS Institute. Tu accueilles les visiteurs, présentes nos formations et les guides vers l'inscription.",
		datatypes.LanguageArabic:  "أنت المساعد الافتراضي لمعهد AVS. ترحب بالزوار وتعرّفهم بدوراتنا التكوينية وترشدهم إلى التسجيل.",
		datatypes.LanguageEnglish: "You are the AVS Institute virtual assistant. You welcome visitors, present our training programs and guide them toward enrollment.",
	},
	datatypes.RoleStudent: {
		datatypes.LanguageFrench:  "Tu es l'assistant virtuel d'AVS Institute. Tu aides les étudiants avec leurs cours, leur progression, leurs notes et leur vie sur la plateforme.",
		datatypes.LanguageArabic:  "أنت المساعد الافتراضي لمعهد AVS. تساعد الطلاب في دوراتهم وتقدمهم ونقاطهم وحياتهم على المنصة.",
		datatypes.LanguageEnglish: "You are the AVS Institute virtual assistant. You help students with their courses, progress, grades and life on the platform.",
	},
	datatypes.RoleProfessor: {
		datatypes.LanguageFrench:  "Tu es l'assistant virtuel d'AVS Institute. Tu assistes les professeurs dans la gestion de leurs classes et de leurs enseignements.",
		datatypes.LanguageArabic:  "أنت المساعد الافتراضي لمعهد AVS. تساعد الأساتذة في إدارة فصولهم الدراسية وتدريسهم.",
		datatypes.LanguageEnglish: "You are the AVS Institute virtual assistant. You assist professors with managing their classes and teaching.",
	},
	datatypes.RoleAdmin: {
		datatypes.LanguageFrench:  "Tu es l'assistant virtuel d'AVS Institute. Tu fournis aux administrateurs une vue d'ensemble de la plateforme: statistiques, formations et utilisateurs.",
		datatypes.LanguageArabic:  "أنت المساعد الافتراضي لمعهد AVS. تزوّد المسؤولين بنظرة شاملة على المنصة: الإحصائيات والدورات والمستخدمون.",
		datatypes.LanguageEnglish: "You are the AVS Institute virtual assistant. You give administrators a platform-wide view: statistics, courses and users.",
	},
}

// rulesBlocks holds the fixed conduct rules appended to every prompt.
var rulesBlocks = map[datatypes.Language]string{
	datatypes.LanguageFrench: `RÈGLES:
- Réponds uniquement aux questions liées à AVS Institute, ses formations et la plateforme.
- Si la question est hors sujet, réponds poliment: "Je suis l'assistant AVS Institute, je ne peux répondre qu'aux questions concernant nos formations et notre plateforme."
- Réponds en 1 à 2 phrases, 100 mots maximum.
- Utilise des listes à puces et des titres en markdown quand tu énumères.`,
	datatypes.LanguageArabic: `القواعد:
- أجب فقط عن الأسئلة المتعلقة بمعهد AVS ودوراته التكوينية والمنصة.
- إذا كان السؤال خارج الموضوع، أجب بأدب: "أنا مساعد معهد AVS، لا يمكنني الإجابة إلا عن الأسئلة المتعلقة بدوراتنا ومنصتنا."
- أجب في جملة أو جملتين، 100 كلمة كحد أقصى.
- استخدم القوائم النقطية والعناوين بصيغة markdown عند التعداد.`,
	datatypes.LanguageEnglish: `RULES:
- Only answer questions related to AVS Institute, its training programs and the platform.
- If the question is off topic, reply politely: "I am the AVS Institute assistant, I can only answer questions about our programs and our platform."
- Answer in 1 to 2 sentences, 100 words maximum.
- Use markdown bullet lists and headers when enumerating.`,
}

// contactBlocks holds the fixed contact information appended to every prompt.
var contactBlocks = map[datatypes.Language]string{
	datatypes.LanguageFrench: `CONTACT AVS INSTITUTE:
- Téléphone: +212 5 24 31 19 82
- WhatsApp: +212 6 20 99 75 80
- Email informations: info@avs.ma
- Email admissions: admissions@avs.ma
- Email support technique: support@avs.ma
- Adresse: Avenue Allal El Fassi, Alpha 2000, Marrakech
- Horaires: Lundi-Vendredi 9h00-18h30, Samedi 9h00-13h00`,
	datatypes.LanguageArabic: `للاتصال بمعهد AVS:
- الهاتف: +212 5 24 31 19 82
- واتساب: +212 6 20 99 75 80
- البريد الإلكتروني للاستعلامات: info@avs.ma
- البريد الإلكتروني للتسجيل: admissions@avs.ma
- البريد الإلكتروني للدعم التقني: support@avs.ma
- العنوان: شارع علال الفاسي، ألفا 2000، مراكش
- أوقات العمل: الاثنين-الجمعة 9:00-18:30، السبت 9:00-13:00`,
	datatypes.LanguageEnglish: `AVS INSTITUTE CONTACT:
- Phone: +212 5 24 31 19 82
- WhatsApp: +212 6 20 99 75 80
- General inquiries: info@avs.ma
- Admissions: admissions@avs.ma
- Technical support: support@avs.ma
- Address: Avenue Allal El Fassi, Alpha 2000, Marrakech
- Hours: Monday-Friday 9:00-18:30, Saturday 9:00-13:00`,
}

// contextLabels prefixes the assembled context block.
var contextLabels = map[datatypes.Language]string{
	datatypes.LanguageFrench:  "CONTEXTE:",
	datatypes.LanguageArabic:  "السياق:",
	datatypes.LanguageEnglish: "CONTEXT:",
}

// offTopicReplies are the canned refusals returned without calling the
// model when the classifier rejects a message.
var offTopicReplies = map[datatypes.Language]string{
	datatypes.LanguageFrench:  "Je suis l'assistant virtuel d'AVS Institute. 😊\n\nJe peux vous renseigner sur:\n- **Nos formations** et leurs programmes\n- **Les inscriptions** et admissions\n- **Votre progression** et vos cours\n\nComment puis-je vous aider ?",
	datatypes.LanguageArabic:  "أنا المساعد الافتراضي لمعهد AVS. 😊\n\nيمكنني مساعدتك في:\n- **دوراتنا التكوينية** وبرامجها\n- **التسجيل** والقبول\n- **تقدمك** ودوراتك\n\nكيف يمكنني مساعدتك؟",
	datatypes.LanguageEnglish: "I am the AVS Institute virtual assistant. 😊\n\nI can help you with:\n- **Our training programs** and their curricula\n- **Enrollment** and admissions\n- **Your progress** and courses\n\nHow can I help you?",
}

// OffTopicReply returns the canned localized refusal.
func OffTopicReply(lang datatypes.Language) string {
	return offTopicReplies[lang]
}

// errorMessages maps wire error codes to localized human messages.
var errorMessages = map[string]map[datatypes.Language]string{
	datatypes.ErrorCodeBadRequest: {
		datatypes.LanguageFrench:  "Votre message est vide ou invalide. Veuillez réessayer.",
		datatypes.LanguageArabic:  "رسالتك فارغة أو غير صالحة. يرجى المحاولة مرة أخرى.",
		datatypes.LanguageEnglish: "Your message is empty or invalid. Please try again.",
	},
	datatypes.ErrorCodeRateLimit: {
		datatypes.LanguageFrench:  "Vous avez envoyé trop de messages. Veuillez patienter une minute avant de réessayer.",
		datatypes.LanguageArabic:  "لقد أرسلت عددًا كبيرًا من الرسائل. يرجى الانتظار دقيقة قبل المحاولة مرة أخرى.",
		datatypes.LanguageEnglish: "You have sent too many messages. Please wait a minute before trying again.",
	},
	datatypes.ErrorCodePaymentRequired: {
		datatypes.LanguageFrench:  "Le service de réponse est temporairement indisponible (crédits épuisés). Veuillez contacter le support.",
		datatypes.LanguageArabic:  "خدمة الرد غير متوفرة مؤقتًا (نفدت الأرصدة). يرجى الاتصال بالدعم.",
		datatypes.LanguageEnglish: "The response service is temporarily unavailable (credits exhausted). Please contact support.",
	},
	datatypes.ErrorCodeGateway: {
		datatypes.LanguageFrench:  "Le service de réponse est momentanément indisponible. Veuillez réessayer dans quelques instants.",
		datatypes.LanguageArabic:  "خدمة الرد غير متوفرة حاليًا. يرجى المحاولة مرة أخرى بعد قليل.",
		datatypes.LanguageEnglish: "The response service is momentarily unavailable. Please try again shortly.",
	},
	datatypes.ErrorCodeInternal: {
		datatypes.LanguageFrench:  "Le service est temporairement indisponible. Veuillez réessayer plus tard.",
		datatypes.LanguageArabic:  "الخدمة غير متوفرة مؤقتًا. يرجى المحاولة لاحقًا.",
		datatypes.LanguageEnglish: "The service is temporarily unavailable. Please try again later.",
	},
}

// ErrorMessage returns the localized human message for a wire error code.
func ErrorMessage(code string, lang datatypes.Language) string {
	return errorMessages[code][lang]
}

// Role-data section headers, keyed by language.
var (
	coursesHeaders = map[datatypes.Language]string{
		datatypes.LanguageFrench:  "Formations disponibles:",
		datatypes.LanguageArabic:  "الدورات المتاحة:",
		datatypes.LanguageEnglish: "Available programs:",
	}
	enrollmentsHeaders = map[datatypes.Language]string{
		datatypes.LanguageFrench:  "Vos inscriptions en cours:",
		datatypes.LanguageArabic:  "تسجيلاتك الجارية:",
		datatypes.LanguageEnglish: "Your active enrollments:",
	}
	gradesHeaders = map[datatypes.Language]string{
		datatypes.LanguageFrench:  "Vos dernières notes:",
		datatypes.LanguageArabic:  "آخر نقاطك:",
		datatypes.LanguageEnglish: "Your latest grades:",
	}
	teachingHeaders = map[datatypes.Language]string{
		datatypes.LanguageFrench:  "Vos classes:",
		datatypes.LanguageArabic:  "فصولك الدراسية:",
		datatypes.LanguageEnglish: "Your classes:",
	}
	statsHeaders = map[datatypes.Language]string{
		datatypes.LanguageFrench:  "Statistiques de la plateforme:",
		datatypes.LanguageArabic:  "إحصائيات المنصة:",
		datatypes.LanguageEnglish: "Platform statistics:",
	}
)
