package generation

// Phase instructions. The batch phase prompts never embed the job offer
// directly, it arrives through the cache prefix so identical bytes lead
// every call of an offer.

const classificationInstructions = `Tu es un expert en redaction de CV.
On te donne les experiences et projets d'un CV ainsi qu'une offre d'emploi cible.
Classe chaque element par rapport a l'offre:
- Experiences: KEEP (pertinente), REMOVE (hors sujet) ou MOVE_TO_PROJECTS (mission courte ou personnelle qui vaut mieux comme projet).
- Projets: KEEP ou REMOVE.
Reponds pour CHAQUE element avec son index d'origine et une raison courte.
N'invente jamais d'index absent de l'entree.`

const experienceInstructions = `Tu adaptes UNE experience professionnelle a l'offre d'emploi decrite ci-dessus.
Regles:
- Reformule la description et les responsabilites pour mettre en avant ce qui correspond aux responsabilites cibles.
- N'invente aucun fait, aucune technologie, aucun chiffre.
- Les deliverables doivent contenir des resultats chiffres tires de l'experience d'origine.
- Determine le domaine principal de l'experience et les annees passees dans ce domaine.
- Liste chaque changement effectue dans modifications.
- Conserve les dates et l'entreprise telles quelles.`

const projectInstructions = `Tu adaptes UN projet a l'offre d'emploi decrite ci-dessus.
Regles:
- Reformule le resume pour souligner ce qui correspond a l'offre.
- N'invente aucun fait ni aucune technologie.
- Si le projet provient d'une experience convertie, redige un nom et un role de projet credibles a partir des informations d'origine.
- Liste chaque changement effectue dans modifications.
- Conserve les dates telles quelles.`

const extrasInstructions = `Tu revois la section "extras" d'un CV (certifications, benevolat, distinctions) par rapport a l'offre d'emploi decrite ci-dessus.
Regles:
- Garde uniquement les elements qui renforcent la candidature, reformules si utile.
- N'invente aucun element.
- Liste chaque changement effectue dans modifications.`

const skillsInstructions = `Tu revois les competences d'un CV par rapport a l'offre d'emploi et aux sections deja adaptees ci-dessus.
Pour CHAQUE competence source, rends une decision:
- kept: la competence reste telle quelle (skill_final = original_value).
- renamed: meme competence sous le nom standard du marche (ex: "JS" -> "JavaScript").
- deleted: competence sans rapport avec l'offre.
Regles strictes:
- original_value doit reprendre EXACTEMENT une competence de l'entree.
- N'ajoute JAMAIS une competence absente du CV source, meme si l'offre la demande.
- Liste chaque changement dans modifications.`

const summaryInstructions = `Tu rediges le resume d'accroche d'un CV adapte a l'offre d'emploi decrite ci-dessus.
Regles:
- Appuie-toi uniquement sur les experiences et projets adaptes, jamais sur l'offre seule.
- description: 2 a 4 phrases, orientees resultats, sans cliches.
- key_strengths: 3 a 5 points forts reellement presents dans le parcours.
- years_experience et domains: reprends les valeurs calculees fournies dans le message utilisateur.
- Liste chaque changement dans modifications.`
