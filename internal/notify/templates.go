package notify

const recoverySubject = "Recuperación de contraseña"

// The reset link is a placeholder; no reset token exists yet.
const recoveryText = `
Estimado usuario,

Hemos recibido una solicitud para restablecer la contraseña asociada a tu cuenta.
Si no has solicitado este cambio, puedes ignorar este mensaje con tranquilidad.

Para restablecer tu contraseña, haz clic en el siguiente enlace:
[Enlace para restablecer contraseña]

Si el botón de arriba no funciona, copia y pega la siguiente URL en tu navegador web:
[URL de restablecimiento de contraseña]

Atentamente,
El equipo de soporte técnico
`

const recoveryHTML = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto">
    <p style="font-size: 16px; line-height: 1.6">Estimado usuario,</p>
    <p style="font-size: 16px; line-height: 1.6">
        Hemos recibido una solicitud para restablecer la contraseña asociada a tu cuenta.
        Si no has solicitado este cambio, puedes ignorar este mensaje con tranquilidad.
    </p>
    <p style="font-size: 16px; line-height: 1.6">
        Para restablecer tu contraseña, haz clic en el siguiente enlace:
        <a href="[Enlace para restablecer contraseña]" style="color: #406ef2">Restablecer contraseña</a>
    </p>
    <p style="font-size: 16px; line-height: 1.6">
        Si el botón de arriba no funciona, copia y pega la siguiente URL en tu navegador web:
        [URL de restablecimiento de contraseña]
    </p>
    <p style="font-size: 16px; line-height: 1.6">
        Atentamente,<br>
        El equipo de soporte técnico
    </p>
</div>`

// PasswordRecovery builds the fixed recovery message for email.
func PasswordRecovery(from Address, email string) Message {
	return Message{
		From:    from,
		To:      Address{Email: email},
		Subject: recoverySubject,
		Text:    recoveryText,
		HTML:    recoveryHTML,
	}
}
