package telegram

const welcomeMessage = `🎭 Bienvenue ! Je publie des prédictions de cartes selon la règle du miroir.

🎯 Commandes :
• /start - Accueil
• /help - Aide détaillée
• /status - État du système
• /cooldown [secondes] - Délai entre prédictions
• /threshold [n] - Répétitions nécessaires
• /redirect [source] [cible] - Redirection des prédictions
• /redi - Rediriger vers ce chat
• /announce [message] - Annonce dans le canal
• /reset - Réinitialiser le système`

const helpMessage = `🎯 Guide d'utilisation

📝 Commandes :
• /status - Fenêtre, cooldown, prédiction en cours et statistiques
• /cooldown - Afficher le délai actuel
• /cooldown [30-600] - Modifier le délai entre prédictions
• /threshold [n] - Nombre de résultats identiques avant prédiction
• /redirect [source] [cible] - Envoyer les prédictions d'un canal vers un autre chat
• /redirect clear - Supprimer les redirections
• /redi - Envoyer les prédictions vers ce chat
• /announce [message] - Publier une annonce
• /reset - Échouer la prédiction en cours et vider l'historique

🔮 Statuts :
  ⏳ → ✅0️⃣ (succès immédiat)
  ⏳ → ✅1️⃣ (succès au jeu suivant)
  ⏳ → ⭕ (échec)

🎴 Cartes : ♠️ ♥️ ♦️ ♣️`

const greetingMessage = `🎭 Salut ! Ajoutez-moi à votre canal pour recevoir les prédictions automatiques 🎯
Utilisez /help pour voir mes commandes.`

const (
	msgUnauthorized  = "🚫 Vous n'êtes pas autorisé à utiliser ce bot."
	msgRateLimited   = "⏰ Veuillez patienter avant d'envoyer une autre commande."
	msgUnknown       = "❓ Commande inconnue. Utilisez /help."
	msgPrivateHint   = "🎭 Salut ! Utilisez /help pour voir mes commandes."
	msgNumberInvalid = "❌ Veuillez entrer un nombre valide."
	msgResetDone     = "✅ Prédictions réinitialisées."
	msgRediDone      = "✅ Redirection configurée vers ce chat."
	msgRedirectClear = "✅ Redirections supprimées !"
	msgRedirectUsage = "📍 Usage : /redirect [source] [cible] ou /redirect clear"
	msgAnnounceUsage = "📢 Usage : /announce [votre message]"
	msgAnnounceSent  = "✅ Annonce envoyée !"
	msgFailed        = "❌ Erreur, réessayez plus tard."
)
