// Package video реализует ретрансляцию видео кадров звонка.
//
// Видео тракт независим от аудио конвейера и не синхронизирован с ним:
// отправитель периодически (по умолчанию 10 Гц) снимает одиночный
// кадр низкого разрешения и передает его через сигнальный канал,
// приемник декодирует и отрисовывает последний пришедший кадр.
// Буферизации и интерполяции нет - новейший кадр всегда побеждает,
// недоставленные и недекодированные кадры молча отбрасываются.
package video
